package reading

import "math"

// Point is a receiver or emitter position in P-dimensional space.
// The package is dimension-generic; estimators require all points in a
// reading set to share the same length (2 for planar, 3 for spatial).
type Point []float64

// Dims returns the dimensionality of the point.
func (p Point) Dims() int { return len(p) }

// DistanceTo returns the Euclidean distance between p and q.
// Returns NaN when the dimensionalities differ.
func (p Point) DistanceTo(q Point) float64 {
	if len(p) != len(q) {
		return math.NaN()
	}
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// NormSq returns the squared Euclidean norm of the point.
func (p Point) NormSq() float64 {
	var sum float64
	for _, v := range p {
		sum += v * v
	}
	return sum
}

// Clone returns an independent copy of the point.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}
	out := make(Point, len(p))
	copy(out, p)
	return out
}

// IsFinite reports whether every coordinate is finite (not NaN or ±Inf).
func (p Point) IsFinite() bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return len(p) > 0
}
