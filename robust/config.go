package robust

import (
	"fmt"

	"github.com/banshee-data/radiolocate/reading"
)

// Tuning defaults. Thresholds are in the residual's natural unit:
// distance units for ranging estimators, dB for RSSI and mixed ones.
const (
	DefaultConfidence    = 0.99
	DefaultMaxIterations = 5000
	DefaultProgressDelta = 0.05

	DefaultRangingThreshold = 1.0
	DefaultRSSIThreshold    = 6.0

	// DefaultStopThreshold ends LMedS-family sampling early once the
	// best median residual falls below it.
	DefaultStopThreshold = 1e-6
)

// Config is the single configuration value object for every estimator in
// this package; NewRangingEstimator, NewRSSIEstimator and
// NewMixedEstimator each consume one. Zero values select documented
// defaults, so Config{Dims: 2} is a valid planar configuration.
type Config struct {
	// Method selects the consensus algorithm; MethodUnspecified
	// resolves to DefaultMethod.
	Method Method

	// Dims is the position dimensionality, 2 or 3. Zero selects 2.
	Dims int

	// Confidence is the probability that at least one sampled subset is
	// outlier-free, driving the adaptive iteration bound. (0,1).
	Confidence float64

	// MaxIterations caps consensus sampling regardless of confidence.
	MaxIterations int

	// ProgressDelta throttles OnEstimateProgressChange callbacks: a new
	// callback fires only after progress advanced by at least this much.
	ProgressDelta float64

	// Threshold is the residual acceptance threshold for RANSAC, MSAC
	// and PROSAC. Ignored by the LMedS family. Zero selects the
	// modality default.
	Threshold float64

	// StopThreshold ends LMedS/PROMedS sampling early once the best
	// median residual is at or below it. Zero selects
	// DefaultStopThreshold; negative disables early stopping.
	StopThreshold float64

	// InlierThreshold, when InlierThresholdEnabled is set, replaces the
	// noise-scale-derived inlier cutoff the LMedS family reports. This
	// only changes inlier membership reporting, never the winning
	// solution.
	InlierThreshold        float64
	InlierThresholdEnabled bool

	// PreliminarySubsetSize enlarges the sampled subsets beyond the
	// method minimum. The effective subset size is
	// max(PreliminarySubsetSize, MinReadings()).
	PreliminarySubsetSize int

	// DisableRefinement skips the inlier-only re-fit of the winning
	// solution.
	DisableRefinement bool

	// KeepCovariance requests the refined solution's covariance. It has
	// no effect when refinement is disabled or fails.
	KeepCovariance bool

	// InitialPosition seeds non-linear fits. Required when
	// DisablePositionEstimation is set; optional otherwise (candidate
	// fits are then seeded from the closed-form linear solution).
	InitialPosition reading.Point

	// InitialTransmittedPowerdBm seeds (or fixes, when not estimated)
	// the equivalent transmitted power.
	InitialTransmittedPowerdBm float64

	// InitialPathLossExponent seeds (or fixes) the path-loss exponent.
	// Zero selects reading.DefaultPathLossExponent.
	InitialPathLossExponent float64

	// EstimateTransmittedPower and EstimatePathLossExponent enable the
	// extra model parameters for RSSI and mixed estimators. Ranging
	// estimators ignore them.
	EstimateTransmittedPower bool
	EstimatePathLossExponent bool

	// DisablePositionEstimation pins the position to InitialPosition
	// and estimates only transmission parameters (RSSI estimators
	// only). Used by the sequential estimator's second pass.
	DisablePositionEstimation bool

	// RandomSeed seeds subset sampling; zero seeds from the clock.
	// Fix it for reproducible estimations.
	RandomSeed int64
}

// withDefaults resolves zero values to documented defaults.
func (c Config) withDefaults(defaultThreshold float64) Config {
	if c.Method == MethodUnspecified {
		c.Method = DefaultMethod
	}
	if c.Dims == 0 {
		c.Dims = 2
	}
	if c.Confidence == 0 {
		c.Confidence = DefaultConfidence
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ProgressDelta == 0 {
		c.ProgressDelta = DefaultProgressDelta
	}
	if c.Threshold == 0 {
		c.Threshold = defaultThreshold
	}
	if c.StopThreshold == 0 {
		c.StopThreshold = DefaultStopThreshold
	}
	if c.InitialPathLossExponent == 0 {
		c.InitialPathLossExponent = reading.DefaultPathLossExponent
	}
	return c
}

// validate checks a defaults-resolved configuration.
func (c Config) validate() error {
	if c.Dims != 2 && c.Dims != 3 {
		return fmt.Errorf("%w: dims must be 2 or 3, got %d", ErrInvalidConfig, c.Dims)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("%w: confidence must be in (0,1), got %v", ErrInvalidConfig, c.Confidence)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidConfig, c.MaxIterations)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidConfig, c.Threshold)
	}
	if c.ProgressDelta < 0 || c.ProgressDelta > 1 {
		return fmt.Errorf("%w: progress delta must be in [0,1], got %v", ErrInvalidConfig, c.ProgressDelta)
	}
	if c.InlierThresholdEnabled && c.InlierThreshold <= 0 {
		return fmt.Errorf("%w: inlier threshold must be positive when enabled, got %v", ErrInvalidConfig, c.InlierThreshold)
	}
	if c.InitialPathLossExponent <= 0 {
		return fmt.Errorf("%w: initial path-loss exponent must be positive, got %v", ErrInvalidConfig, c.InitialPathLossExponent)
	}
	if c.InitialPosition != nil && c.InitialPosition.Dims() != c.Dims {
		return fmt.Errorf("%w: initial position has %d dims, want %d", ErrInvalidConfig, c.InitialPosition.Dims(), c.Dims)
	}
	if c.DisablePositionEstimation && c.InitialPosition == nil {
		return fmt.Errorf("%w: disabling position estimation requires an initial position", ErrInvalidConfig)
	}
	return nil
}
