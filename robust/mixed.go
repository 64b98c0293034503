package robust

import (
	"math"

	"github.com/banshee-data/radiolocate/reading"
	"github.com/banshee-data/radiolocate/solver"
)

// MixedEstimator robustly estimates an emitter position, and optionally
// transmitted power and path-loss exponent, from readings that carry
// both a distance and an RSSI measurement. Candidate fits use both
// measurement kinds; candidates are scored by the RSSI residual, the
// same scoring rule the RSSI family uses.
type MixedEstimator struct {
	core
}

// NewMixedEstimator builds a combined ranging+RSSI estimator from a
// configuration value object.
func NewMixedEstimator(cfg Config) (*MixedEstimator, error) {
	cfg = cfg.withDefaults(DefaultRSSIThreshold)
	cfg.DisablePositionEstimation = false
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &MixedEstimator{core: newCore(cfg)}, nil
}

// MinReadings returns the minimum reading count: dims+1, plus one for
// each enabled transmission parameter.
func (e *MixedEstimator) MinReadings() int {
	min := e.cfg.Dims + 1
	if e.cfg.EstimateTransmittedPower {
		min++
	}
	if e.cfg.EstimatePathLossExponent {
		min++
	}
	return min
}

// IsReady reports whether Estimate can run: every reading must carry
// both measurement components.
func (e *MixedEstimator) IsReady() bool {
	if !e.readyCommon(e.MinReadings()) {
		return false
	}
	for _, r := range e.readings {
		if !r.HasDistance || !r.HasRSSI || r.Validate(e.cfg.Dims) != nil {
			return false
		}
	}
	return true
}

// Estimate runs the configured consensus method over the mixed readings.
func (e *MixedEstimator) Estimate() error {
	if err := e.beginEstimate(e); err != nil {
		return err
	}
	defer e.endEstimate(e)

	subsetSize := e.subsetSize(e.MinReadings())
	diagf("mixed estimate: method=%s readings=%d subset=%d", e.cfg.Method, len(e.readings), subsetSize)

	positions := make([]reading.Point, subsetSize)
	distances := make([]float64, subsetSize)
	subset := make([]reading.Reading, subsetSize)

	problem := consensusProblem{
		total:      len(e.readings),
		subsetSize: subsetSize,
		fit: func(indices []int) (Solution, bool) {
			for i, idx := range indices {
				r := e.readings[idx]
				positions[i] = r.Position
				distances[i] = r.Distance
				subset[i] = r
			}
			seed, err := solver.LinearLateration(positions, distances)
			if err != nil {
				seed = e.cfg.InitialPosition
				if seed == nil {
					return Solution{}, false
				}
			}
			fit, err := solver.FitRadio(subset, solver.RadioFitOptions{
				EstimatePosition:        true,
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
		opsf("mixed estimate failed: %v", err)
		return err
	}

	refined := refineSolution(e.readings, win, run.fitInliers, e.cfg, true)
	e.commitResult(win, inliers, refined, true, run.itersRun)
	diagf("mixed estimate done: iterations=%d inliers=%d/%d", run.itersRun, inliers.NumInliers, len(e.readings))
	return nil
}
