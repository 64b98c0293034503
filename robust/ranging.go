package robust

import (
	"math"

	"github.com/banshee-data/radiolocate/reading"
	"github.com/banshee-data/radiolocate/solver"
)

// RangingEstimator robustly estimates an emitter position from distance
// measurements. Candidate fits seed a Gauss-Newton polish with the
// closed-form linear lateration solution of each sampled subset.
type RangingEstimator struct {
	core
}

// NewRangingEstimator builds a ranging estimator from a configuration
// value object. Transmission-parameter flags are ignored: ranging
// readings carry no power information.
func NewRangingEstimator(cfg Config) (*RangingEstimator, error) {
	cfg = cfg.withDefaults(DefaultRangingThreshold)
	cfg.EstimateTransmittedPower = false
	cfg.EstimatePathLossExponent = false
	cfg.DisablePositionEstimation = false
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &RangingEstimator{core: newCore(cfg)}, nil
}

// MinReadings returns the minimum reading count: one more than the
// position dimensionality.
func (e *RangingEstimator) MinReadings() int { return e.cfg.Dims + 1 }

// IsReady reports whether Estimate can run: enough distance readings of
// the right dimensionality, plus quality scores for the PROSAC family.
func (e *RangingEstimator) IsReady() bool {
	if !e.readyCommon(e.MinReadings()) {
		return false
	}
	for _, r := range e.readings {
		if !r.HasDistance || r.Validate(e.cfg.Dims) != nil {
			return false
		}
	}
	return true
}

// Estimate runs the configured consensus method over the readings and,
// on success, populates the estimated position, inlier data and (when
// refinement succeeds with covariance kept) the position covariance.
func (e *RangingEstimator) Estimate() error {
	if err := e.beginEstimate(e); err != nil {
		return err
	}
	defer e.endEstimate(e)

	subsetSize := e.subsetSize(e.MinReadings())
	diagf("ranging estimate: method=%s readings=%d subset=%d", e.cfg.Method, len(e.readings), subsetSize)

	// Per-iteration scratch, reused across fits but never shared with
	// the solvers beyond a single call.
	positions := make([]reading.Point, subsetSize)
	distances := make([]float64, subsetSize)
	subset := make([]reading.Reading, subsetSize)

	problem := consensusProblem{
		total:      len(e.readings),
		subsetSize: subsetSize,
		fit: func(indices []int) (Solution, bool) {
			for i, idx := range indices {
				positions[i] = e.readings[idx].Position
				distances[i] = e.readings[idx].Distance
				subset[i] = e.readings[idx]
			}
			seed, err := solver.LinearLateration(positions, distances)
			if err != nil {
				seed = e.cfg.InitialPosition
				if seed == nil {
					return Solution{}, false
				}
			}
			fit, err := solver.FitRadio(subset, solver.RadioFitOptions{
				EstimatePosition: true,
				InitialPosition:  seed,
			})
			if err != nil {
				// The linear seed alone is still a usable candidate.
				return Solution{Position: seed.Clone()}, true
			}
			return Solution{Position: fit.Position}, true
		},
		residual: func(sol Solution, index int) float64 {
			r := e.readings[index]
			return math.Abs(sol.Position.DistanceTo(r.Position) - r.Distance)
		},
	}

	run := e.newRun(e, problem)
	win, inliers, err := run.execute()
	if err != nil {
		opsf("ranging estimate failed: %v", err)
		return err
	}

	refined := refineSolution(e.readings, win, run.fitInliers, e.cfg, true)
	e.commitResult(win, inliers, refined, true, run.itersRun)
	diagf("ranging estimate done: iterations=%d inliers=%d/%d", run.itersRun, inliers.NumInliers, len(e.readings))
	return nil
}
