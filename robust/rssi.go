package robust

import (
	"fmt"
	"math"

	"github.com/banshee-data/radiolocate/reading"
	"github.com/banshee-data/radiolocate/solver"
)

// RSSIEstimator robustly estimates an emitter position, and optionally
// its equivalent transmitted power and path-loss exponent, from received
// signal strength readings. With DisablePositionEstimation set the
// position is pinned to the configured initial position and only the
// transmission parameters are fitted (the sequential estimator's second
// pass).
type RSSIEstimator struct {
	core
}

// NewRSSIEstimator builds an RSSI estimator from a configuration value
// object.
func NewRSSIEstimator(cfg Config) (*RSSIEstimator, error) {
	cfg = cfg.withDefaults(DefaultRSSIThreshold)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DisablePositionEstimation && !cfg.EstimateTransmittedPower && !cfg.EstimatePathLossExponent {
		return nil, fmt.Errorf("%w: position estimation disabled but no transmission parameter enabled", ErrInvalidConfig)
	}
	return &RSSIEstimator{core: newCore(cfg)}, nil
}

// activeParams counts the model parameters this configuration estimates.
func (e *RSSIEstimator) activeParams() int {
	n := 0
	if !e.cfg.DisablePositionEstimation {
		n += e.cfg.Dims
	}
	if e.cfg.EstimateTransmittedPower {
		n++
	}
	if e.cfg.EstimatePathLossExponent {
		n++
	}
	return n
}

// MinReadings returns the minimum reading count: one more than the number
// of actively estimated parameters. It grows as the transmitted-power and
// path-loss flags are enabled.
func (e *RSSIEstimator) MinReadings() int { return e.activeParams() + 1 }

// IsReady reports whether Estimate can run.
func (e *RSSIEstimator) IsReady() bool {
	if !e.readyCommon(e.MinReadings()) {
		return false
	}
	for _, r := range e.readings {
		if !r.HasRSSI || r.Validate(e.cfg.Dims) != nil {
			return false
		}
	}
	return true
}

// Estimate runs the configured consensus method over the RSSI readings.
func (e *RSSIEstimator) Estimate() error {
	if err := e.beginEstimate(e); err != nil {
		return err
	}
	defer e.endEstimate(e)

	estimatePosition := !e.cfg.DisablePositionEstimation
	subsetSize := e.subsetSize(e.MinReadings())
	diagf("rssi estimate: method=%s readings=%d subset=%d power=%v pathloss=%v",
		e.cfg.Method, len(e.readings), subsetSize, e.cfg.EstimateTransmittedPower, e.cfg.EstimatePathLossExponent)

	positions := make([]reading.Point, subsetSize)
	distances := make([]float64, subsetSize)
	subset := make([]reading.Reading, subsetSize)

	problem := consensusProblem{
		total:      len(e.readings),
		subsetSize: subsetSize,
		fit: func(indices []int) (Solution, bool) {
			for i, idx := range indices {
				subset[i] = e.readings[idx]
			}

			seed := e.cfg.InitialPosition
			if estimatePosition {
				// Seed from the linearised geometry implied by the
				// initial transmission parameters, falling back to any
				// configured initial position.
				for i, idx := range indices {
					r := e.readings[idx]
					positions[i] = r.Position
					distances[i] = reading.DistanceFromRSSI(
						r.RSSIdBm,
						e.cfg.InitialTransmittedPowerdBm,
						e.cfg.InitialPathLossExponent,
						reading.PathLossConstant(r.Source.FrequencyHz),
					)
				}
				linear, err := solver.LinearLateration(positions, distances)
				if err == nil {
					seed = linear
				}
				if seed == nil {
					return Solution{}, false
				}
			}

			fit, err := solver.FitRadio(subset, solver.RadioFitOptions{
				EstimatePosition:        estimatePosition,
				EstimatePower:           e.cfg.EstimateTransmittedPower,
				EstimatePathLoss:        e.cfg.EstimatePathLossExponent,
				InitialPosition:         seed,
				InitialPowerdBm:         e.cfg.InitialTransmittedPowerdBm,
				InitialPathLossExponent: e.cfg.InitialPathLossExponent,
			})
			if err != nil {
				return Solution{}, false
			}
			return Solution{
				Position:            fit.Position,
				TransmittedPowerdBm: fit.TransmittedPowerdBm,
				PathLossExponent:    fit.PathLossExponent,
				PowerEstimated:      e.cfg.EstimateTransmittedPower,
				PathLossEstimated:   e.cfg.EstimatePathLossExponent,
			}, true
		},
		residual: func(sol Solution, index int) float64 {
			r := e.readings[index]
			d := sol.Position.DistanceTo(r.Position)
			k := reading.PathLossConstant(r.Source.FrequencyHz)
			expected := reading.ExpectedRSSI(sol.TransmittedPowerdBm, sol.PathLossExponent, k, d)
			return math.Abs(expected - r.RSSIdBm)
		},
	}

	run := e.newRun(e, problem)
	win, inliers, err := run.execute()
	if err != nil {
		opsf("rssi estimate failed: %v", err)
		return err
	}

	refined := refineSolution(e.readings, win, run.fitInliers, e.cfg, estimatePosition)
	e.commitResult(win, inliers, refined, estimatePosition, run.itersRun)
	diagf("rssi estimate done: iterations=%d inliers=%d/%d", run.itersRun, inliers.NumInliers, len(e.readings))
	return nil
}
