package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/radiolocate/reading"
)

// LinearLateration solves the lateration problem in closed form by
// linearising the sphere equations against a reference receiver: for each
// receiver i and reference k,
//
//	2·(Sk − Si)·x = di² − dk² − ‖Si‖² + ‖Sk‖²
//
// The resulting overdetermined linear system is solved with a QR
// least-squares factorisation, which keeps the conditioning of the
// original system instead of forming AᵀA. Requires at least dims+1
// measurements; degenerate receiver geometry surfaces as an error.
func LinearLateration(positions []reading.Point, distances []float64) (reading.Point, error) {
	n := len(positions)
	if n == 0 {
		return nil, fmt.Errorf("no measurements")
	}
	if len(distances) != n {
		return nil, fmt.Errorf("measurement count mismatch: %d positions, %d distances", n, len(distances))
	}
	dims := positions[0].Dims()
	if n < dims+1 {
		return nil, fmt.Errorf("insufficient measurements: got %d, need at least %d for %d dims", n, dims+1, dims)
	}

	refPos := positions[n-1]
	refDist := distances[n-1]
	if refDist < 0 {
		refDist = 0
	}
	refDistSq := refDist * refDist
	refNormSq := refPos.NormSq()

	rows := n - 1
	aData := make([]float64, rows*dims)
	bData := make([]float64, rows)
	for i := 0; i < rows; i++ {
		if positions[i].Dims() != dims {
			return nil, fmt.Errorf("measurement %d has %d dims, want %d", i, positions[i].Dims(), dims)
		}
		dist := distances[i]
		if dist < 0 {
			dist = 0
		}
		for j := 0; j < dims; j++ {
			aData[i*dims+j] = 2 * (refPos[j] - positions[i][j])
		}
		bData[i] = dist*dist - refDistSq - positions[i].NormSq() + refNormSq
	}

	A := mat.NewDense(rows, dims, aData)
	b := mat.NewVecDense(rows, bData)

	var qr mat.QR
	qr.Factorize(A)

	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("QR least-squares solve failed: %w", err)
	}

	out := make(reading.Point, dims)
	for j := 0; j < dims; j++ {
		out[j] = x.AtVec(j)
	}
	if !out.IsFinite() {
		return nil, fmt.Errorf("linear lateration produced a non-finite position")
	}
	return out, nil
}
