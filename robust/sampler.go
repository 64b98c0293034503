package robust

import (
	"math"
	"math/rand"
	"sort"
)

// subsetSampler produces the next subset of reading indices to fit.
// Implementations reuse internal scratch state across calls; dst receives
// subsetSize indices.
type subsetSampler interface {
	next(dst []int)
}

// uniformSampler draws subsets uniformly at random without replacement
// (RANSAC, MSAC, LMedS).
type uniformSampler struct {
	rnd *rand.Rand
	idx []int
	m   int
}

func (r *consensusRun) uniformSampler() *uniformSampler {
	idx := make([]int, r.problem.total)
	for i := range idx {
		idx[i] = i
	}
	return &uniformSampler{rnd: r.rnd, idx: idx, m: r.problem.subsetSize}
}

func (s *uniformSampler) next(dst []int) {
	// Partial Fisher-Yates: the first m slots become a uniform sample.
	n := len(s.idx)
	for i := 0; i < s.m; i++ {
		j := i + s.rnd.Intn(n-i)
		s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	}
	copy(dst, s.idx[:s.m])
}

// prosacSampler draws subsets in decreasing quality order, progressively
// growing the sampling pool (PROSAC, PROMedS). Each sample contains the
// pool's lowest-quality member plus m−1 random picks from the rest of the
// pool, per the standard PROSAC growth schedule; once the pool covers all
// readings the sampler degenerates to uniform sampling.
type prosacSampler struct {
	rnd   *rand.Rand
	order []int // reading indices sorted by decreasing quality
	m     int

	pool   int     // current pool size n
	t      int     // samples drawn so far
	tn     float64 // T_n: expected samples drawn only from the top-n pool
	tnPrim int     // T'_n: growth trigger for the pool
}

func (r *consensusRun) prosacSampler() *prosacSampler {
	n := r.problem.total
	m := r.problem.subsetSize

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	scores := r.qualityScores
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	// T_m = budget · C(m,m)/C(N,m) = budget · Π (m−i)/(N−i).
	tn := float64(r.maxIterations)
	for i := 0; i < m; i++ {
		tn *= float64(m-i) / float64(n-i)
	}
	return &prosacSampler{
		rnd:    r.rnd,
		order:  order,
		m:      m,
		pool:   m,
		tn:     tn,
		tnPrim: 1,
	}
}

func (s *prosacSampler) next(dst []int) {
	s.t++
	total := len(s.order)
	if s.t > s.tnPrim && s.pool < total {
		// Grow the pool: T_{n+1} = T_n·(n+1)/(n+1−m).
		tnNext := s.tn * float64(s.pool+1) / float64(s.pool+1-s.m)
		s.tnPrim += int(math.Ceil(tnNext - s.tn))
		s.tn = tnNext
		s.pool++
	}

	if s.pool >= total && s.t > s.tnPrim {
		// Pool exhausted: uniform over everything.
		s.sampleFrom(dst, s.m, total)
		return
	}

	// The n-th highest-quality reading is always included; the rest of
	// the subset is drawn from the n−1 readings above it.
	dst[s.m-1] = s.order[s.pool-1]
	s.sampleFrom(dst[:s.m-1], s.m-1, s.pool-1)
}

// sampleFrom fills dst with k distinct indices drawn from the top-limit
// entries of the quality ordering.
func (s *prosacSampler) sampleFrom(dst []int, k, limit int) {
	if k <= 0 {
		return
	}
	if k >= limit {
		for i := 0; i < k; i++ {
			dst[i] = s.order[i]
		}
		return
	}
	picked := make(map[int]struct{}, k)
	for i := 0; i < k; {
		j := s.rnd.Intn(limit)
		if _, dup := picked[j]; dup {
			continue
		}
		picked[j] = struct{}{}
		dst[i] = s.order[j]
		i++
	}
}
