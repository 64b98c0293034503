package robust

import (
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/radiolocate/reading"
)

// core holds the configuration, lifecycle guard and result fields shared
// by every robust estimator in this package. It is not safe for
// concurrent use: the locked flag is a reentrancy guard, not a mutex.
// Setters and Estimate fail fast with ErrLocked while an estimation is in
// progress instead of blocking.
type core struct {
	cfg           Config
	readings      []reading.Reading
	qualityScores []float64
	listener      Listener
	locked        bool

	// Result fields, populated only by a successful Estimate call and
	// left untouched by failed ones.
	hasResult          bool
	estimatedPosition  reading.Point
	positionCovariance *mat.SymDense
	estimatedPowerdBm  float64
	powerVariance      float64
	hasPowerVariance   bool
	estimatedPathLoss  float64
	pathLossVariance   float64
	hasPathLossVar     bool
	inliers            *InliersData
	iterations         int
}

func newCore(cfg Config) core {
	return core{cfg: cfg}
}

// Method returns the consensus method this estimator runs.
func (c *core) Method() Method { return c.cfg.Method }

// IsLocked reports whether an estimation is currently in progress.
func (c *core) IsLocked() bool { return c.locked }

// Confidence returns the configured confidence level.
func (c *core) Confidence() float64 { return c.cfg.Confidence }

// MaxIterations returns the configured sampling budget.
func (c *core) MaxIterations() int { return c.cfg.MaxIterations }

// Threshold returns the configured residual acceptance threshold.
func (c *core) Threshold() float64 { return c.cfg.Threshold }

// NumReadings returns the number of configured readings.
func (c *core) NumReadings() int { return len(c.readings) }

// SetReadings replaces the observation set. The slice is referenced, not
// copied; callers must not mutate it during an Estimate call.
func (c *core) SetReadings(readings []reading.Reading) error {
	if c.locked {
		return ErrLocked
	}
	c.readings = readings
	return nil
}

// SetQualityScores supplies per-reading quality scores for PROSAC and
// PROMedS. Length must match the reading count by the time Estimate runs.
func (c *core) SetQualityScores(scores []float64) error {
	if c.locked {
		return ErrLocked
	}
	c.qualityScores = scores
	return nil
}

// SetListener installs the estimation event listener.
func (c *core) SetListener(l Listener) error {
	if c.locked {
		return ErrLocked
	}
	c.listener = l
	return nil
}

// SetConfidence updates the confidence level.
func (c *core) SetConfidence(confidence float64) error {
	if c.locked {
		return ErrLocked
	}
	if confidence <= 0 || confidence >= 1 {
		return fmt.Errorf("%w: confidence must be in (0,1), got %v", ErrInvalidConfig, confidence)
	}
	c.cfg.Confidence = confidence
	return nil
}

// SetMaxIterations updates the sampling budget.
func (c *core) SetMaxIterations(n int) error {
	if c.locked {
		return ErrLocked
	}
	if n < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidConfig, n)
	}
	c.cfg.MaxIterations = n
	return nil
}

// SetThreshold updates the residual acceptance threshold.
func (c *core) SetThreshold(threshold float64) error {
	if c.locked {
		return ErrLocked
	}
	if threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidConfig, threshold)
	}
	c.cfg.Threshold = threshold
	return nil
}

// SetProgressDelta updates the progress callback throttle.
func (c *core) SetProgressDelta(delta float64) error {
	if c.locked {
		return ErrLocked
	}
	if delta < 0 || delta > 1 {
		return fmt.Errorf("%w: progress delta must be in [0,1], got %v", ErrInvalidConfig, delta)
	}
	c.cfg.ProgressDelta = delta
	return nil
}

// SetRefinement toggles the inlier-only re-fit of the winning solution.
func (c *core) SetRefinement(enabled bool) error {
	if c.locked {
		return ErrLocked
	}
	c.cfg.DisableRefinement = !enabled
	return nil
}

// SetKeepCovariance toggles covariance retention during refinement.
func (c *core) SetKeepCovariance(keep bool) error {
	if c.locked {
		return ErrLocked
	}
	c.cfg.KeepCovariance = keep
	return nil
}

// SetRandomSeed fixes the sampling seed; zero seeds from the clock.
func (c *core) SetRandomSeed(seed int64) error {
	if c.locked {
		return ErrLocked
	}
	c.cfg.RandomSeed = seed
	return nil
}

// EstimatedPosition returns the most recent successful estimate, or nil.
func (c *core) EstimatedPosition() reading.Point {
	return c.estimatedPosition.Clone()
}

// EstimatedPositionCovariance returns the position covariance block, or
// nil when refinement was disabled, failed, or covariance was not kept.
func (c *core) EstimatedPositionCovariance() *mat.SymDense {
	return c.positionCovariance
}

// EstimatedTransmittedPowerdBm returns the estimated (or configured
// initial) equivalent transmitted power.
func (c *core) EstimatedTransmittedPowerdBm() float64 {
	return c.estimatedPowerdBm
}

// EstimatedTransmittedPowerVariance returns the power variance from the
// refined covariance; ok is false when it is unavailable.
func (c *core) EstimatedTransmittedPowerVariance() (float64, bool) {
	return c.powerVariance, c.hasPowerVariance
}

// EstimatedPathLossExponent returns the estimated (or configured initial)
// path-loss exponent.
func (c *core) EstimatedPathLossExponent() float64 {
	return c.estimatedPathLoss
}

// EstimatedPathLossExponentVariance returns the path-loss variance from
// the refined covariance; ok is false when it is unavailable.
func (c *core) EstimatedPathLossExponentVariance() (float64, bool) {
	return c.pathLossVariance, c.hasPathLossVar
}

// Inliers returns the inlier data from the most recent successful
// estimation, or nil.
func (c *core) Inliers() *InliersData { return c.inliers }

// Iterations returns the number of consensus iterations the most recent
// successful estimation ran.
func (c *core) Iterations() int { return c.iterations }

// HasResult reports whether a successful estimation has completed.
func (c *core) HasResult() bool { return c.hasResult }

// readyCommon covers the readiness conditions shared by all estimators.
func (c *core) readyCommon(min int) bool {
	if len(c.readings) < min {
		return false
	}
	if c.cfg.Method.usesQualityScores() && len(c.qualityScores) != len(c.readings) {
		return false
	}
	return true
}

// beginEstimate performs the precondition checks and locks the estimator.
// Both checks happen before any state mutation.
func (c *core) beginEstimate(self Estimator) error {
	if c.locked {
		return ErrLocked
	}
	if !self.IsReady() {
		return ErrNotReady
	}
	c.locked = true
	if c.listener != nil {
		c.listener.OnEstimateStart(self)
	}
	return nil
}

// endEstimate fires the end event and unlocks. Deferred by Estimate so
// the lock is released on every exit path; the end event fires while
// still locked so callbacks cannot mutate configuration.
func (c *core) endEstimate(self Estimator) {
	if c.listener != nil {
		c.listener.OnEstimateEnd(self)
	}
	c.locked = false
}

// newRun builds a single-use consensus run for this call.
func (c *core) newRun(self Estimator, problem consensusProblem) *consensusRun {
	seed := c.cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	run := &consensusRun{
		problem:                problem,
		method:                 c.cfg.Method,
		confidence:             c.cfg.Confidence,
		maxIterations:          c.cfg.MaxIterations,
		threshold:              c.cfg.Threshold,
		stopThreshold:          c.cfg.StopThreshold,
		inlierThreshold:        c.cfg.InlierThreshold,
		inlierThresholdEnabled: c.cfg.InlierThresholdEnabled,
		qualityScores:          c.qualityScores,
		rnd:                    rand.New(rand.NewSource(seed)),
	}
	if c.listener != nil {
		run.onIteration = func(iteration int) {
			c.listener.OnEstimateNextIteration(self, iteration)
		}
		lastProgress := 0.0
		run.onProgress = func(progress float64) {
			if progress > 1 {
				progress = 1
			}
			if progress-lastProgress >= c.cfg.ProgressDelta {
				lastProgress = progress
				c.listener.OnEstimateProgressChange(self, progress)
			}
		}
	}
	return run
}

// subsetSize applies the preliminary-subset invariant,
// max(configured preliminary subset size, method minimum), clamped to the
// reading count so samplers never draw more indices than exist.
func (c *core) subsetSize(min int) int {
	size := min
	if c.cfg.PreliminarySubsetSize > size {
		size = c.cfg.PreliminarySubsetSize
	}
	if n := len(c.readings); size > n {
		size = n
	}
	return size
}
