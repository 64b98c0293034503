package reading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointDistanceTo(t *testing.T) {
	t.Parallel()

	t.Run("planar distance", func(t *testing.T) {
		t.Parallel()
		a := Point{0, 0}
		b := Point{3, 4}
		assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-12)
		assert.InDelta(t, 5.0, b.DistanceTo(a), 1e-12)
	})

	t.Run("3d distance", func(t *testing.T) {
		t.Parallel()
		a := Point{1, 2, 3}
		b := Point{1, 2, 3}
		assert.Zero(t, a.DistanceTo(b))
	})

	t.Run("dimension mismatch is NaN", func(t *testing.T) {
		t.Parallel()
		a := Point{0, 0}
		b := Point{0, 0, 0}
		assert.True(t, math.IsNaN(a.DistanceTo(b)))
	})
}

func TestPointClone(t *testing.T) {
	t.Parallel()

	p := Point{1, 2}
	c := p.Clone()
	c[0] = 99
	assert.Equal(t, Point{1, 2}, p)
	assert.Nil(t, Point(nil).Clone())
}

func TestPointIsFinite(t *testing.T) {
	t.Parallel()

	assert.True(t, Point{1, 2, 3}.IsFinite())
	assert.False(t, Point{1, math.NaN()}.IsFinite())
	assert.False(t, Point{math.Inf(1), 0}.IsFinite())
}

func TestPointNormSq(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 25.0, Point{3, 4}.NormSq(), 1e-12)
	assert.Zero(t, Point{}.NormSq())
}
