package reading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSource(t *testing.T) {
	t.Parallel()

	a := NewSource(2.4e9)
	b := NewSource(2.4e9)
	assert.True(t, strings.HasPrefix(a.ID, "src_"))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2.4e9, a.FrequencyHz)
}

func TestReadingValidate(t *testing.T) {
	t.Parallel()

	src := Source{ID: "src_test", FrequencyHz: 2.4e9}

	tests := []struct {
		name    string
		reading Reading
		dims    int
		wantErr string
	}{
		{
			name:    "valid ranging",
			reading: NewRanging(src, Point{1, 2}, 5),
			dims:    2,
		},
		{
			name:    "valid rssi",
			reading: NewRSSI(src, Point{1, 2, 3}, -60),
			dims:    3,
		},
		{
			name:    "dimension mismatch",
			reading: NewRanging(src, Point{1, 2}, 5),
			dims:    3,
			wantErr: "dims",
		},
		{
			name:    "no components",
			reading: Reading{Source: src, Position: Point{1, 2}},
			dims:    2,
			wantErr: "neither",
		},
		{
			name:    "negative distance",
			reading: NewRanging(src, Point{1, 2}, -1),
			dims:    2,
			wantErr: "negative distance",
		},
		{
			name:    "rssi without frequency",
			reading: NewRSSI(Source{ID: "src_f0"}, Point{1, 2}, -60),
			dims:    2,
			wantErr: "frequency",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.reading.Validate(tt.dims)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadingComponentStripping(t *testing.T) {
	t.Parallel()

	src := Source{ID: "src_test", FrequencyHz: 2.4e9}
	r := NewMixed(src, Point{1, 2}, 5, -60)
	r.DistanceStdDev = 0.1
	r.RSSIStdDev = 2

	ranging := r.RangingOnly()
	assert.True(t, ranging.HasDistance)
	assert.False(t, ranging.HasRSSI)
	assert.Zero(t, ranging.RSSIdBm)
	assert.Zero(t, ranging.RSSIStdDev)
	assert.Equal(t, 5.0, ranging.Distance)

	rssi := r.RSSIOnly()
	assert.True(t, rssi.HasRSSI)
	assert.False(t, rssi.HasDistance)
	assert.Zero(t, rssi.Distance)
	assert.Equal(t, -60.0, rssi.RSSIdBm)

	// The original reading is untouched.
	assert.True(t, r.HasDistance)
	assert.True(t, r.HasRSSI)
}

func TestConstructorsClonePosition(t *testing.T) {
	t.Parallel()

	src := Source{ID: "src_test", FrequencyHz: 2.4e9}
	pos := Point{1, 2}
	r := NewRanging(src, pos, 5)
	pos[0] = 99
	assert.Equal(t, Point{1, 2}, r.Position)
}
