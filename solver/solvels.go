package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// solveWeighted solves one weighted least-squares step
//
//	dx = (JᵀWJ)⁻¹ JᵀW r
//
// and returns (JᵀWJ)⁻¹ as the parameter covariance estimate. W is the
// diagonal weight matrix built from the per-row weights. A singular or
// ill-conditioned system surfaces as an error.
func solveWeighted(J mat.Matrix, r mat.Vector, weights []float64) (*mat.VecDense, *mat.SymDense, error) {
	rows, cols := J.Dims()
	if r.Len() != rows {
		return nil, nil, fmt.Errorf("invalid system size: J(%d x %d), r(%d x 1)", rows, cols, r.Len())
	}
	if len(weights) != rows {
		return nil, nil, fmt.Errorf("invalid weight count: %d for %d rows", len(weights), rows)
	}

	W := mat.NewDiagDense(rows, weights)

	// A = Jᵀ W J
	var WJ mat.Dense
	WJ.Mul(W, J)
	var A mat.Dense
	A.Mul(J.T(), &WJ)

	// b = Jᵀ W r
	var JtW mat.Dense
	JtW.Mul(J.T(), W)
	var b mat.VecDense
	b.MulVec(&JtW, r)

	var dx mat.VecDense
	if err := dx.SolveVec(&A, &b); err != nil {
		return nil, nil, fmt.Errorf("normal equations solve failed: %w", err)
	}

	var inv mat.Dense
	if err := inv.Inverse(&A); err != nil {
		return nil, nil, fmt.Errorf("covariance inversion failed: %w", err)
	}

	// Symmetrise: A⁻¹ is symmetric up to round-off.
	cov := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			cov.SetSym(i, j, (inv.At(i, j)+inv.At(j, i))/2)
		}
	}
	return &dx, cov, nil
}
