package robust

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// candidateFit fits one candidate solution from a subset of reading
// indices. A degenerate subset (singular geometry, solver failure) is an
// expected outcome, not an error: the fit reports ok=false and the engine
// moves on to the next sample.
type candidateFit func(indices []int) (Solution, bool)

// residualFunc scores one reading against a candidate solution. Residuals
// are non-negative; smaller is better.
type residualFunc func(sol Solution, index int) float64

// consensusProblem is the method-independent part of a consensus run.
type consensusProblem struct {
	total      int
	subsetSize int
	fit        candidateFit
	residual   residualFunc
}

// consensusRun carries the method-specific knobs for one Estimate call.
// Runs are single-use: all iteration state lives here and is discarded
// with the run, so repeated Estimate calls cannot leak state.
type consensusRun struct {
	problem consensusProblem

	method        Method
	confidence    float64
	maxIterations int

	// Threshold-based methods (RANSAC/MSAC/PROSAC).
	threshold float64

	// Median-based methods (LMedS/PROMedS).
	stopThreshold          float64
	inlierThreshold        float64
	inlierThresholdEnabled bool

	// Quality-ordered sampling (PROSAC/PROMedS).
	qualityScores []float64

	rnd         *rand.Rand
	onIteration func(iteration int)
	onProgress  func(progress float64)

	// itersRun records how many samples the run actually drew.
	itersRun int

	// fitInliers is the membership the refinement stage re-fits over.
	// It matches the returned InliersData except under the LMedS-family
	// reporting override, where the reported mask may differ but the
	// refinement keeps the noise-scale-derived one.
	fitInliers *InliersData
}

// execute runs the configured consensus method and returns the winning
// solution with its inlier data.
func (r *consensusRun) execute() (Solution, *InliersData, error) {
	switch r.method {
	case MethodRANSAC:
		return r.thresholdLoop(r.uniformSampler(), false)
	case MethodMSAC:
		return r.thresholdLoop(r.uniformSampler(), true)
	case MethodPROSAC:
		return r.thresholdLoop(r.prosacSampler(), false)
	case MethodLMedS:
		return r.medianLoop(r.uniformSampler())
	case MethodPROMedS:
		return r.medianLoop(r.prosacSampler())
	}
	return Solution{}, nil, &EstimationError{Method: r.method, Reason: "unsupported method"}
}

// thresholdLoop implements RANSAC-style consensus: candidates are scored
// against a fixed residual threshold, by inlier count (RANSAC/PROSAC) or
// by threshold-capped total cost (MSAC). The iteration budget shrinks
// adaptively as the best inlier ratio improves.
func (r *consensusRun) thresholdLoop(s subsetSampler, msac bool) (Solution, *InliersData, error) {
	n := r.problem.total
	subset := make([]int, r.problem.subsetSize)

	var best Solution
	bestFound := false
	bestCost := math.Inf(1)
	bestInliers := 0

	required := r.maxIterations
	for iter := 0; iter < required; iter++ {
		r.itersRun = iter + 1
		if r.onIteration != nil {
			r.onIteration(iter)
		}
		s.next(subset)

		sol, ok := r.problem.fit(subset)
		if !ok {
			continue // no candidate from this subset
		}

		inliers := 0
		cost := 0.0
		for i := 0; i < n; i++ {
			res := r.problem.residual(sol, i)
			if res < r.threshold {
				inliers++
				cost += res
			} else {
				cost += r.threshold
			}
		}

		better := inliers > bestInliers
		if msac {
			better = cost < bestCost
		}
		if better && inliers > 0 {
			best = sol
			bestFound = true
			bestCost = cost
			bestInliers = inliers

			ratio := float64(inliers) / float64(n)
			if need := requiredIterations(r.confidence, ratio, r.problem.subsetSize, r.maxIterations); need < required {
				required = need
			}
		}

		if r.onProgress != nil {
			r.onProgress(float64(iter+1) / float64(required))
		}
	}

	if !bestFound {
		return Solution{}, nil, &EstimationError{
			Method: r.method,
			Reason: "no valid candidate within the iteration budget",
		}
	}

	mask := make([]bool, n)
	count := 0
	for i := 0; i < n; i++ {
		if r.problem.residual(best, i) < r.threshold {
			mask[i] = true
			count++
		}
	}
	inliers := &InliersData{
		Inliers:    mask,
		NumInliers: count,
		Threshold:  r.threshold,
	}
	r.fitInliers = inliers
	return best, inliers, nil
}

// medianLoop implements LMedS-style consensus: candidates are scored by
// their median residual across all readings and the smallest median wins.
// Inliers are derived post hoc from the noise scale implied by the
// winning median.
func (r *consensusRun) medianLoop(s subsetSampler) (Solution, *InliersData, error) {
	n := r.problem.total
	m := r.problem.subsetSize
	subset := make([]int, m)
	residuals := make([]float64, n)
	sorted := make([]float64, n)

	var best Solution
	bestFound := false
	bestMedian := math.Inf(1)

	// LMedS tolerates up to 50% contamination; the initial budget assumes
	// that worst case and shrinks if a cleaner candidate shows up.
	required := requiredIterations(r.confidence, 0.5, m, r.maxIterations)
	for iter := 0; iter < required; iter++ {
		r.itersRun = iter + 1
		if r.onIteration != nil {
			r.onIteration(iter)
		}
		s.next(subset)

		sol, ok := r.problem.fit(subset)
		if !ok {
			continue
		}

		for i := 0; i < n; i++ {
			residuals[i] = r.problem.residual(sol, i)
		}
		copy(sorted, residuals)
		sort.Float64s(sorted)
		med := stat.Quantile(0.5, stat.Empirical, sorted, nil)

		if med < bestMedian {
			best = sol
			bestFound = true
			bestMedian = med
		}

		if r.onProgress != nil {
			r.onProgress(float64(iter+1) / float64(required))
		}
		if bestFound && bestMedian <= r.stopThreshold {
			break
		}
	}

	if !bestFound {
		return Solution{}, nil, &EstimationError{
			Method: r.method,
			Reason: "no valid candidate within the iteration budget",
		}
	}

	// Robust noise scale around the winning median,
	// σ = 1.4826·(1 + 5/(n−m))·med, inliers within 2.5σ.
	factor := 1.4826
	if n > m {
		factor *= 1 + 5/float64(n-m)
	}
	cutoff := 2.5 * factor * bestMedian

	membership := func(threshold float64) *InliersData {
		mask := make([]bool, n)
		count := 0
		for i := 0; i < n; i++ {
			if r.problem.residual(best, i) <= threshold {
				mask[i] = true
				count++
			}
		}
		return &InliersData{
			Inliers:        mask,
			NumInliers:     count,
			Threshold:      threshold,
			MedianResidual: bestMedian,
		}
	}

	// Refinement always re-fits over the noise-scale membership; the
	// configured override only changes what is reported.
	r.fitInliers = membership(cutoff)
	if r.inlierThresholdEnabled {
		return best, membership(r.inlierThreshold), nil
	}
	return best, r.fitInliers, nil
}

// requiredIterations returns the number of random samples needed to draw
// at least one outlier-free subset with the given confidence, assuming
// the supplied inlier ratio: N = ln(1−confidence) / ln(1−wᵐ).
func requiredIterations(confidence, inlierRatio float64, subsetSize, maxIterations int) int {
	if inlierRatio <= 0 {
		return maxIterations
	}
	if inlierRatio >= 1 {
		return 1
	}
	wm := math.Pow(inlierRatio, float64(subsetSize))
	if wm >= 1 {
		return 1
	}
	if wm <= 1e-12 {
		return maxIterations
	}
	need := math.Log(1-confidence) / math.Log(1-wm)
	if math.IsNaN(need) || need >= float64(maxIterations) {
		return maxIterations
	}
	if need < 1 {
		return 1
	}
	return int(math.Ceil(need))
}
