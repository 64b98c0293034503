package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/radiolocate/reading"
)

// Internal numerical guards for the Gauss-Newton loop.
const (
	// minGeometryDistance floors the emitter-receiver distance inside
	// Jacobian rows so a candidate position sitting exactly on a
	// receiver does not produce infinite derivatives.
	minGeometryDistance = 1e-9

	defaultMaxIterations = 50
	defaultTolerance     = 1e-12
)

// RadioFitOptions selects which parameters a FitRadio call estimates and
// supplies initial values for all of them. Parameters not estimated keep
// their initial value in the returned solution.
type RadioFitOptions struct {
	EstimatePosition bool
	EstimatePower    bool
	EstimatePathLoss bool

	// InitialPosition is required. It seeds the Gauss-Newton iteration
	// when the position is estimated, and fixes the emitter position
	// otherwise.
	InitialPosition reading.Point

	InitialPowerdBm         float64
	InitialPathLossExponent float64

	// MaxIterations and Tolerance bound the Gauss-Newton loop.
	// Zero selects the package defaults.
	MaxIterations int
	Tolerance     float64
}

// RadioSolution is the result of a FitRadio call. Covariance spans the
// actively estimated parameters in the fixed order
// [position dims..., power, path-loss] with inactive parameters absent.
type RadioSolution struct {
	Position            reading.Point
	TransmittedPowerdBm float64
	PathLossExponent    float64

	Covariance  *mat.SymDense
	Iterations  int
	ResidualRMS float64
}

// FitRadio estimates the selected subset of {position, transmitted power,
// path-loss exponent} from a set of readings by weighted Gauss-Newton.
// Each reading contributes a ranging row (distance residual) and/or an
// RSSI row (predicted-vs-measured received power under the isotropic
// path-loss model). Rows are weighted by the inverse measurement variance
// where a standard deviation is available.
func FitRadio(readings []reading.Reading, opts RadioFitOptions) (*RadioSolution, error) {
	dims := opts.InitialPosition.Dims()
	if dims == 0 {
		return nil, fmt.Errorf("initial position is required")
	}

	nParams := 0
	if opts.EstimatePosition {
		nParams += dims
	}
	if opts.EstimatePower {
		nParams++
	}
	if opts.EstimatePathLoss {
		nParams++
	}
	if nParams == 0 {
		return nil, fmt.Errorf("no parameters selected for estimation")
	}

	rows := 0
	for i, r := range readings {
		if err := r.Validate(dims); err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		if r.HasDistance {
			rows++
		}
		if r.HasRSSI {
			rows++
		}
	}
	if rows < nParams {
		return nil, fmt.Errorf("insufficient measurements: %d rows for %d parameters", rows, nParams)
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = defaultTolerance
	}

	pos := opts.InitialPosition.Clone()
	power := opts.InitialPowerdBm
	pathLoss := opts.InitialPathLossExponent
	if !opts.EstimatePathLoss && pathLoss == 0 {
		pathLoss = reading.DefaultPathLossExponent
	}

	// Column layout of the Jacobian.
	powerCol := -1
	pathLossCol := -1
	next := 0
	if opts.EstimatePosition {
		next = dims
	}
	if opts.EstimatePower {
		powerCol = next
		next++
	}
	if opts.EstimatePathLoss {
		pathLossCol = next
	}

	J := mat.NewDense(rows, nParams, nil)
	res := mat.NewVecDense(rows, nil)
	weights := make([]float64, rows)

	fill := func() {
		row := 0
		for _, r := range readings {
			d := pos.DistanceTo(r.Position)
			if d < minGeometryDistance {
				d = minGeometryDistance
			}
			if r.HasDistance {
				for j := 0; j < nParams; j++ {
					J.Set(row, j, 0)
				}
				if opts.EstimatePosition {
					for j := 0; j < dims; j++ {
						J.Set(row, j, (pos[j]-r.Position[j])/d)
					}
				}
				res.SetVec(row, d-r.Distance)
				weights[row] = rowWeight(r.DistanceStdDev)
				row++
			}
			if r.HasRSSI {
				k := reading.PathLossConstant(r.Source.FrequencyHz)
				for j := 0; j < nParams; j++ {
					J.Set(row, j, 0)
				}
				if opts.EstimatePosition {
					// ∂Pr/∂x = −(10·n/ln10)·(x − p)/d²
					scale := -10 * pathLoss / (math.Ln10 * d * d)
					for j := 0; j < dims; j++ {
						J.Set(row, j, scale*(pos[j]-r.Position[j]))
					}
				}
				if powerCol >= 0 {
					J.Set(row, powerCol, 1)
				}
				if pathLossCol >= 0 {
					J.Set(row, pathLossCol, 10*(math.Log10(k)-math.Log10(d)))
				}
				res.SetVec(row, reading.ExpectedRSSI(power, pathLoss, k, d)-r.RSSIdBm)
				weights[row] = rowWeight(r.RSSIStdDev)
				row++
			}
		}
	}

	var cov *mat.SymDense
	iters := 0
	for ; iters < maxIter; iters++ {
		fill()

		// Gauss-Newton solves J·dx = −r for the parameter update.
		negRes := mat.NewVecDense(rows, nil)
		negRes.ScaleVec(-1, res)
		step, c, err := solveWeighted(J, negRes, weights)
		if err != nil {
			return nil, err
		}
		cov = c

		col := 0
		if opts.EstimatePosition {
			for j := 0; j < dims; j++ {
				pos[j] += step.AtVec(j)
			}
			col = dims
		}
		if opts.EstimatePower {
			power += step.AtVec(col)
			col++
		}
		if opts.EstimatePathLoss {
			pathLoss += step.AtVec(col)
		}

		if !pos.IsFinite() || math.IsNaN(power) || math.IsNaN(pathLoss) {
			return nil, fmt.Errorf("fit diverged after %d iterations", iters+1)
		}
		if mat.Norm(step, 2) < tol {
			iters++
			break
		}
	}

	// Final residuals at the converged parameters.
	fill()
	var sumSq float64
	for i := 0; i < rows; i++ {
		v := res.AtVec(i)
		sumSq += v * v
	}

	return &RadioSolution{
		Position:            pos,
		TransmittedPowerdBm: power,
		PathLossExponent:    pathLoss,
		Covariance:          cov,
		Iterations:          iters,
		ResidualRMS:         math.Sqrt(sumSq / float64(rows)),
	}, nil
}

// FitTransmission estimates transmitted power and/or path-loss exponent
// for an emitter at a known, fixed position. The model is linear in both
// parameters, so the Gauss-Newton loop converges immediately.
func FitTransmission(position reading.Point, readings []reading.Reading, opts RadioFitOptions) (*RadioSolution, error) {
	opts.EstimatePosition = false
	opts.InitialPosition = position
	return FitRadio(readings, opts)
}

// rowWeight maps a measurement standard deviation to an inverse-variance
// weight; an unknown (zero) deviation contributes a unit weight.
func rowWeight(stdDev float64) float64 {
	if stdDev > 0 {
		return 1 / (stdDev * stdDev)
	}
	return 1
}
