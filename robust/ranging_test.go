package robust

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/radiolocate/reading"
)

const testFrequency = 2.4e9

// testEmitter and the receiver ring below form the reference layout the
// estimator tests share: twelve receivers on the perimeter of a 10x10
// square with the emitter at its center.
var testEmitter = reading.Point{5, 5}

func testReceivers() []reading.Point {
	return []reading.Point{
		{0, 0}, {5, 0}, {10, 0},
		{10, 5}, {10, 10}, {5, 10},
		{0, 10}, {0, 5},
		{2.5, 0}, {10, 2.5}, {7.5, 10}, {0, 7.5},
	}
}

func noiselessRangingReadings() []reading.Reading {
	src := reading.Source{ID: "src_test", FrequencyHz: testFrequency}
	receivers := testReceivers()
	out := make([]reading.Reading, len(receivers))
	for i, p := range receivers {
		out[i] = reading.NewRanging(src, p, p.DistanceTo(testEmitter))
	}
	return out
}

func uniformScores(n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = float64(n - i)
	}
	return scores
}

func TestRangingEstimatorAllMethods(t *testing.T) {
	t.Parallel()

	methods := []Method{MethodRANSAC, MethodLMedS, MethodMSAC, MethodPROSAC, MethodPROMedS}
	for _, method := range methods {
		method := method
		t.Run(method.String(), func(t *testing.T) {
			t.Parallel()
			e, err := NewRangingEstimator(Config{
				Method:     method,
				Dims:       2,
				Threshold:  0.5,
				RandomSeed: 77,
			})
			require.NoError(t, err)

			readings := noiselessRangingReadings()
			require.NoError(t, e.SetReadings(readings))
			if method.usesQualityScores() {
				require.NoError(t, e.SetQualityScores(uniformScores(len(readings))))
			}
			require.True(t, e.IsReady())
			require.NoError(t, e.Estimate())

			require.True(t, e.HasResult())
			got := e.EstimatedPosition()
			assert.InDelta(t, testEmitter[0], got[0], 1e-4)
			assert.InDelta(t, testEmitter[1], got[1], 1e-4)
			assert.Equal(t, len(readings), e.Inliers().NumInliers)
			assert.Greater(t, e.Iterations(), 0)
		})
	}
}

func TestRangingEstimatorRejectsOutlier(t *testing.T) {
	t.Parallel()

	readings := noiselessRangingReadings()
	corrupted := 3
	readings[corrupted].Distance += 50

	for _, method := range []Method{MethodRANSAC, MethodMSAC, MethodLMedS} {
		method := method
		t.Run(method.String(), func(t *testing.T) {
			t.Parallel()
			e, err := NewRangingEstimator(Config{
				Method:                 method,
				Dims:                   2,
				Threshold:              0.5,
				InlierThreshold:        0.5,
				InlierThresholdEnabled: true,
				RandomSeed:             42,
			})
			require.NoError(t, err)
			require.NoError(t, e.SetReadings(readings))
			require.NoError(t, e.Estimate())

			got := e.EstimatedPosition()
			assert.InDelta(t, testEmitter[0], got[0], 1e-3)
			assert.InDelta(t, testEmitter[1], got[1], 1e-3)

			inliers := e.Inliers()
			require.NotNil(t, inliers)
			assert.False(t, inliers.Inliers[corrupted], "corrupted reading must be flagged")
			assert.Equal(t, len(readings)-1, inliers.NumInliers)
		})
	}
}

func TestRangingEstimatorReproducibleWithFixedSeed(t *testing.T) {
	t.Parallel()

	readings := noiselessRangingReadings()
	readings[1].Distance += 8
	readings[6].Distance -= 4

	run := func() (reading.Point, int) {
		e, err := NewRangingEstimator(Config{
			Method:     MethodRANSAC,
			Dims:       2,
			Threshold:  0.5,
			RandomSeed: 1234,
		})
		require.NoError(t, err)
		require.NoError(t, e.SetReadings(readings))
		require.NoError(t, e.Estimate())
		return e.EstimatedPosition(), e.Iterations()
	}

	pos1, iters1 := run()
	pos2, iters2 := run()
	assert.Equal(t, pos1, pos2)
	assert.Equal(t, iters1, iters2)
}

func TestRangingEstimatorRepeatedEstimateIsIdempotent(t *testing.T) {
	t.Parallel()

	readings := noiselessRangingReadings()
	readings[2].Distance += 12

	e, err := NewRangingEstimator(Config{
		Method:     MethodMSAC,
		Dims:       2,
		Threshold:  0.5,
		RandomSeed: 314,
	})
	require.NoError(t, err)
	require.NoError(t, e.SetReadings(readings))

	require.NoError(t, e.Estimate())
	first := e.EstimatedPosition()
	firstInliers := e.Inliers().NumInliers

	// No iteration state can leak between calls on the same instance.
	require.NoError(t, e.Estimate())
	assert.Equal(t, first, e.EstimatedPosition())
	assert.Equal(t, firstInliers, e.Inliers().NumInliers)
}

func TestRangingEstimatorFourCornerSquare(t *testing.T) {
	t.Parallel()

	emitter := reading.Point{5, 5}
	src := reading.Source{ID: "src_test", FrequencyHz: testFrequency}
	corners := []reading.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	readings := make([]reading.Reading, len(corners))
	for i, p := range corners {
		readings[i] = reading.NewRanging(src, p, p.DistanceTo(emitter))
	}

	e, err := NewRangingEstimator(Config{
		Method:     MethodRANSAC,
		Dims:       2,
		Threshold:  0.5,
		RandomSeed: 8,
	})
	require.NoError(t, err)
	require.NoError(t, e.SetReadings(readings))
	require.NoError(t, e.Estimate())

	got := e.EstimatedPosition()
	assert.InDelta(t, 5.0, got[0], 1e-4)
	assert.InDelta(t, 5.0, got[1], 1e-4)
	assert.Equal(t, len(readings), e.Inliers().NumInliers, "no reading may be excluded")
}

func TestRangingEstimatorCovariance(t *testing.T) {
	t.Parallel()

	e, err := NewRangingEstimator(Config{
		Dims:           2,
		KeepCovariance: true,
		RandomSeed:     7,
	})
	require.NoError(t, err)
	require.NoError(t, e.SetReadings(noiselessRangingReadings()))

	scores := uniformScores(len(testReceivers()))
	require.NoError(t, e.SetQualityScores(scores))
	require.NoError(t, e.Estimate())

	cov := e.EstimatedPositionCovariance()
	require.NotNil(t, cov)
	assert.Equal(t, 2, cov.SymmetricDim())
	for j := 0; j < 2; j++ {
		assert.GreaterOrEqual(t, cov.At(j, j), 0.0)
		assert.False(t, math.IsNaN(cov.At(j, j)))
	}
}

func TestRangingEstimatorNoCovarianceWhenRefinementDisabled(t *testing.T) {
	t.Parallel()

	e, err := NewRangingEstimator(Config{
		Method:            MethodRANSAC,
		Dims:              2,
		DisableRefinement: true,
		KeepCovariance:    true,
		RandomSeed:        7,
	})
	require.NoError(t, err)
	require.NoError(t, e.SetReadings(noiselessRangingReadings()))
	require.NoError(t, e.Estimate())

	assert.True(t, e.HasResult())
	assert.Nil(t, e.EstimatedPositionCovariance())
}

func TestRangingEstimatorMinReadings(t *testing.T) {
	t.Parallel()

	planar, err := NewRangingEstimator(Config{Dims: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, planar.MinReadings())

	spatial, err := NewRangingEstimator(Config{Dims: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, spatial.MinReadings())
}

func TestRangingEstimatorReadiness(t *testing.T) {
	t.Parallel()

	t.Run("too few readings", func(t *testing.T) {
		t.Parallel()
		e, err := NewRangingEstimator(Config{Method: MethodRANSAC, Dims: 2})
		require.NoError(t, err)
		require.NoError(t, e.SetReadings(noiselessRangingReadings()[:2]))
		assert.False(t, e.IsReady())
		assert.ErrorIs(t, e.Estimate(), ErrNotReady)
		assert.False(t, e.HasResult())
	})

	t.Run("rssi-only readings are not usable", func(t *testing.T) {
		t.Parallel()
		e, err := NewRangingEstimator(Config{Method: MethodRANSAC, Dims: 2})
		require.NoError(t, err)
		src := reading.Source{ID: "src_test", FrequencyHz: testFrequency}
		readings := []reading.Reading{
			reading.NewRSSI(src, reading.Point{0, 0}, -60),
			reading.NewRSSI(src, reading.Point{10, 0}, -60),
			reading.NewRSSI(src, reading.Point{0, 10}, -60),
			reading.NewRSSI(src, reading.Point{10, 10}, -60),
		}
		require.NoError(t, e.SetReadings(readings))
		assert.False(t, e.IsReady())
	})

	t.Run("quality scores required for prosac", func(t *testing.T) {
		t.Parallel()
		e, err := NewRangingEstimator(Config{Method: MethodPROSAC, Dims: 2})
		require.NoError(t, err)
		require.NoError(t, e.SetReadings(noiselessRangingReadings()))
		assert.False(t, e.IsReady())

		require.NoError(t, e.SetQualityScores(uniformScores(len(testReceivers()))))
		assert.True(t, e.IsReady())
	})
}

func TestRangingEstimatorConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad dims", Config{Dims: 4}},
		{"bad confidence", Config{Dims: 2, Confidence: 1.5}},
		{"negative threshold", Config{Dims: 2, Threshold: -1}},
		{"bad progress delta", Config{Dims: 2, ProgressDelta: 2}},
		{"enabled inlier threshold must be positive", Config{Dims: 2, InlierThresholdEnabled: true}},
		{"initial position dims mismatch", Config{Dims: 2, InitialPosition: reading.Point{1, 2, 3}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRangingEstimator(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// estimationListener records the callbacks of one Estimate call and
// checks that configuration stays frozen while locked.
type estimationListener struct {
	t          *testing.T
	starts     int
	ends       int
	iterations int
	progresses []float64
	lockedErr  error
}

func (l *estimationListener) OnEstimateStart(e Estimator) {
	l.starts++
	if !e.IsLocked() {
		l.t.Error("estimator must be locked during OnEstimateStart")
	}
}

func (l *estimationListener) OnEstimateEnd(e Estimator) {
	l.ends++
	if !e.IsLocked() {
		l.t.Error("estimator must still be locked during OnEstimateEnd")
	}
}

func (l *estimationListener) OnEstimateNextIteration(e Estimator, iteration int) {
	l.iterations++
	if c, ok := e.(*RangingEstimator); ok && l.lockedErr == nil {
		l.lockedErr = c.SetConfidence(0.5)
	}
}

func (l *estimationListener) OnEstimateProgressChange(e Estimator, progress float64) {
	l.progresses = append(l.progresses, progress)
}

func TestRangingEstimatorListener(t *testing.T) {
	t.Parallel()

	e, err := NewRangingEstimator(Config{
		Method:     MethodRANSAC,
		Dims:       2,
		RandomSeed: 11,
	})
	require.NoError(t, err)
	require.NoError(t, e.SetReadings(noiselessRangingReadings()))

	l := &estimationListener{t: t}
	require.NoError(t, e.SetListener(l))
	require.NoError(t, e.Estimate())

	assert.Equal(t, 1, l.starts)
	assert.Equal(t, 1, l.ends)
	assert.Greater(t, l.iterations, 0)
	assert.ErrorIs(t, l.lockedErr, ErrLocked)
	assert.False(t, e.IsLocked(), "lock must be released after Estimate")

	// Progress values are monotonic and capped at 1.
	for i := 1; i < len(l.progresses); i++ {
		assert.GreaterOrEqual(t, l.progresses[i], l.progresses[i-1])
	}
	if n := len(l.progresses); n > 0 {
		assert.LessOrEqual(t, l.progresses[n-1], 1.0)
	}
}

func TestRangingEstimatorSettersRejectInvalidValues(t *testing.T) {
	t.Parallel()

	e, err := NewRangingEstimator(Config{Dims: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, e.SetConfidence(0), ErrInvalidConfig)
	assert.ErrorIs(t, e.SetConfidence(1), ErrInvalidConfig)
	assert.ErrorIs(t, e.SetMaxIterations(0), ErrInvalidConfig)
	assert.ErrorIs(t, e.SetThreshold(0), ErrInvalidConfig)
	assert.ErrorIs(t, e.SetProgressDelta(-0.1), ErrInvalidConfig)

	assert.NoError(t, e.SetConfidence(0.95))
	assert.NoError(t, e.SetMaxIterations(100))
	assert.NoError(t, e.SetThreshold(2))
	assert.NoError(t, e.SetProgressDelta(0.1))
	assert.NoError(t, e.SetRandomSeed(99))
	assert.NoError(t, e.SetKeepCovariance(true))
	assert.NoError(t, e.SetRefinement(false))
}

func TestRangingEstimatorPreliminarySubsetSize(t *testing.T) {
	t.Parallel()

	e, err := NewRangingEstimator(Config{
		Dims:                  2,
		PreliminarySubsetSize: 6,
		RandomSeed:            5,
	})
	require.NoError(t, err)
	readings := noiselessRangingReadings()
	require.NoError(t, e.SetReadings(readings))

	scores := uniformScores(len(readings))
	require.NoError(t, e.SetQualityScores(scores))
	require.NoError(t, e.Estimate())

	got := e.EstimatedPosition()
	assert.InDelta(t, testEmitter[0], got[0], 1e-4)
	assert.InDelta(t, testEmitter[1], got[1], 1e-4)
}

func TestRangingEstimatorSubsetSizeClampedToReadingCount(t *testing.T) {
	t.Parallel()

	// A preliminary subset size larger than the reading set must clamp to
	// the reading count rather than over-draw in the sampler.
	e, err := NewRangingEstimator(Config{
		Method:                MethodRANSAC,
		Dims:                  2,
		PreliminarySubsetSize: 6,
		RandomSeed:            19,
	})
	require.NoError(t, err)
	readings := noiselessRangingReadings()[:4]
	require.NoError(t, e.SetReadings(readings))
	require.True(t, e.IsReady())
	require.NoError(t, e.Estimate())

	got := e.EstimatedPosition()
	assert.InDelta(t, testEmitter[0], got[0], 1e-4)
	assert.InDelta(t, testEmitter[1], got[1], 1e-4)
	assert.Equal(t, len(readings), e.Inliers().NumInliers)
}

func TestRangingEstimator3D(t *testing.T) {
	t.Parallel()

	emitter := reading.Point{5, 5, 2}
	src := reading.Source{ID: "src_test", FrequencyHz: testFrequency}
	receivers := []reading.Point{
		{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {10, 10, 0},
		{0, 0, 5}, {10, 0, 5}, {0, 10, 5}, {10, 10, 5},
	}
	readings := make([]reading.Reading, len(receivers))
	for i, p := range receivers {
		readings[i] = reading.NewRanging(src, p, p.DistanceTo(emitter))
	}

	e, err := NewRangingEstimator(Config{Dims: 3, Method: MethodLMedS, RandomSeed: 3})
	require.NoError(t, err)
	require.NoError(t, e.SetReadings(readings))
	require.NoError(t, e.Estimate())

	got := e.EstimatedPosition()
	for j := range emitter {
		assert.InDelta(t, emitter[j], got[j], 1e-4)
	}
}
