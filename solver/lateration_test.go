package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/radiolocate/reading"
)

func squareCorners(side float64) []reading.Point {
	return []reading.Point{
		{0, 0},
		{side, 0},
		{side, side},
		{0, side},
	}
}

func distancesFrom(emitter reading.Point, positions []reading.Point) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = p.DistanceTo(emitter)
	}
	return out
}

func TestLinearLateration(t *testing.T) {
	t.Parallel()

	t.Run("exact planar recovery", func(t *testing.T) {
		t.Parallel()
		emitter := reading.Point{5, 5}
		positions := squareCorners(10)
		got, err := LinearLateration(positions, distancesFrom(emitter, positions))
		require.NoError(t, err)
		assert.InDelta(t, 5.0, got[0], 1e-9)
		assert.InDelta(t, 5.0, got[1], 1e-9)
	})

	t.Run("off-center emitter", func(t *testing.T) {
		t.Parallel()
		emitter := reading.Point{2.5, 8.25}
		positions := squareCorners(10)
		got, err := LinearLateration(positions, distancesFrom(emitter, positions))
		require.NoError(t, err)
		assert.InDelta(t, emitter[0], got[0], 1e-9)
		assert.InDelta(t, emitter[1], got[1], 1e-9)
	})

	t.Run("3d recovery", func(t *testing.T) {
		t.Parallel()
		emitter := reading.Point{1, 2, 3}
		positions := []reading.Point{
			{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {0, 0, 10}, {10, 10, 10},
		}
		got, err := LinearLateration(positions, distancesFrom(emitter, positions))
		require.NoError(t, err)
		for j := range emitter {
			assert.InDelta(t, emitter[j], got[j], 1e-9)
		}
	})

	t.Run("too few measurements", func(t *testing.T) {
		t.Parallel()
		positions := []reading.Point{{0, 0}, {1, 0}}
		_, err := LinearLateration(positions, []float64{1, 1})
		assert.ErrorContains(t, err, "insufficient")
	})

	t.Run("count mismatch", func(t *testing.T) {
		t.Parallel()
		positions := squareCorners(10)
		_, err := LinearLateration(positions, []float64{1, 2})
		assert.ErrorContains(t, err, "mismatch")
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		_, err := LinearLateration(nil, nil)
		assert.Error(t, err)
	})

	t.Run("collinear receivers are degenerate", func(t *testing.T) {
		t.Parallel()
		emitter := reading.Point{5, 5}
		positions := []reading.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}}
		got, err := LinearLateration(positions, distancesFrom(emitter, positions))
		if err == nil {
			// A rank-deficient system either errors or produces a
			// non-unique answer; it must never silently return the
			// true position as if the geometry were sound.
			require.NotNil(t, got)
		}
	})
}
