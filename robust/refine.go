package robust

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/radiolocate/reading"
	"github.com/banshee-data/radiolocate/solver"
)

// refineSolution re-fits the model over the inlier readings only, seeded
// with the winning solution. Any failure here is recoverable: a nil
// return means "keep the unrefined winner, report no covariance".
func refineSolution(readings []reading.Reading, win Solution, inliers *InliersData, cfg Config, estimatePosition bool) *solver.RadioSolution {
	if cfg.DisableRefinement || inliers == nil || inliers.NumInliers == 0 {
		return nil
	}

	subset := make([]reading.Reading, 0, inliers.NumInliers)
	for i, in := range inliers.Inliers {
		if in {
			subset = append(subset, readings[i])
		}
	}

	refined, err := solver.FitRadio(subset, solver.RadioFitOptions{
		EstimatePosition:        estimatePosition,
		EstimatePower:           win.PowerEstimated,
		EstimatePathLoss:        win.PathLossEstimated,
		InitialPosition:         win.Position,
		InitialPowerdBm:         win.TransmittedPowerdBm,
		InitialPathLossExponent: win.PathLossExponent,
	})
	if err != nil {
		opsf("refinement failed, keeping unrefined solution: %v", err)
		return nil
	}
	return refined
}

// partitionCovariance splits an inner-solver covariance over the active
// parameter set into its position block, power variance and path-loss
// variance. The position block is dims×dims at offset 0 when the position
// was estimated; the power variance (when estimated) is the next diagonal
// element, and the path-loss variance the one after that.
func partitionCovariance(cov *mat.SymDense, dims int, estimatePosition, estimatePower, estimatePathLoss bool) (posCov *mat.SymDense, powerVar, pathLossVar float64, hasPower, hasPathLoss bool) {
	if cov == nil {
		return nil, 0, 0, false, false
	}
	offset := 0
	if estimatePosition {
		posCov = mat.NewSymDense(dims, nil)
		for i := 0; i < dims; i++ {
			for j := i; j < dims; j++ {
				posCov.SetSym(i, j, cov.At(i, j))
			}
		}
		offset = dims
	}
	if estimatePower {
		powerVar = cov.At(offset, offset)
		hasPower = true
		offset++
	}
	if estimatePathLoss {
		pathLossVar = cov.At(offset, offset)
		hasPathLoss = true
	}
	return posCov, powerVar, pathLossVar, hasPower, hasPathLoss
}

// commitResult promotes a winning (possibly refined) solution into the
// estimator's result fields. Called only on success; failed estimations
// leave earlier results untouched.
func (c *core) commitResult(win Solution, inliers *InliersData, refined *solver.RadioSolution, estimatePosition bool, iterations int) {
	c.inliers = inliers
	c.iterations = iterations
	c.positionCovariance = nil
	c.powerVariance, c.hasPowerVariance = 0, false
	c.pathLossVariance, c.hasPathLossVar = 0, false

	if refined != nil {
		c.estimatedPosition = refined.Position.Clone()
		c.estimatedPowerdBm = refined.TransmittedPowerdBm
		c.estimatedPathLoss = refined.PathLossExponent
		if c.cfg.KeepCovariance {
			posCov, powerVar, plVar, hasPower, hasPL := partitionCovariance(
				refined.Covariance, c.cfg.Dims, estimatePosition, win.PowerEstimated, win.PathLossEstimated)
			c.positionCovariance = posCov
			c.powerVariance, c.hasPowerVariance = powerVar, hasPower
			c.pathLossVariance, c.hasPathLossVar = plVar, hasPL
		}
	} else {
		c.estimatedPosition = win.Position.Clone()
		c.estimatedPowerdBm = win.TransmittedPowerdBm
		c.estimatedPathLoss = win.PathLossExponent
	}
	c.hasResult = true
}
