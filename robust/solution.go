package robust

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/radiolocate/reading"
)

// Solution is a candidate model produced by one fit of a reading subset.
// Solutions are immutable once built; the consensus engine creates and
// discards one per iteration, and the winning instance is promoted into
// the estimator's result fields.
type Solution struct {
	Position reading.Point

	// TransmittedPowerdBm and PathLossExponent carry either estimated
	// values (when the corresponding flag is set) or the configured
	// initial values.
	TransmittedPowerdBm float64
	PathLossExponent    float64
	PowerEstimated      bool
	PathLossEstimated   bool

	// Covariance over the actively estimated parameters, when the inner
	// solver produced one. Nil otherwise.
	Covariance *mat.SymDense
}

// InliersData records which readings supported the winning solution.
// It is produced once per Estimate call and replaced on the next call.
type InliersData struct {
	// Inliers has one entry per reading, true when the reading's
	// residual against the winning solution fell below Threshold.
	Inliers []bool

	// NumInliers counts the true entries of Inliers.
	NumInliers int

	// Threshold is the residual cutoff that defined membership. For the
	// LMedS family this is derived from the estimated noise scale (or
	// the configured reporting threshold when enabled).
	Threshold float64

	// MedianResidual is the winning candidate's median residual.
	// Only meaningful for LMedS and PROMedS.
	MedianResidual float64
}

// Estimator is the surface shared by all robust estimators, and the type
// passed to listener callbacks.
type Estimator interface {
	Method() Method
	IsLocked() bool
	IsReady() bool
	MinReadings() int
	Estimate() error
}

// Listener receives best-effort notifications during an Estimate call.
// Callbacks run synchronously on the calling goroutine and must not
// mutate estimator configuration; mutating setters invoked from a
// callback fail with ErrLocked.
type Listener interface {
	OnEstimateStart(e Estimator)
	OnEstimateEnd(e Estimator)
	OnEstimateNextIteration(e Estimator, iteration int)
	OnEstimateProgressChange(e Estimator, progress float64)
}
