package robust

import "fmt"

// Method selects the consensus algorithm used to reject outlier readings.
type Method int

const (
	// MethodUnspecified resolves to DefaultMethod.
	MethodUnspecified Method = iota
	// MethodRANSAC accepts the candidate with the largest inlier count
	// under a fixed residual threshold.
	MethodRANSAC
	// MethodLMedS accepts the candidate with the smallest median
	// residual; no user threshold is required.
	MethodLMedS
	// MethodMSAC scores candidates by a threshold-capped total residual
	// cost, which tolerates a loosely tuned threshold better than RANSAC.
	MethodMSAC
	// MethodPROSAC is RANSAC with sampling ordered by per-reading
	// quality scores, progressively relaxing the sampling pool.
	MethodPROSAC
	// MethodPROMedS combines LMedS scoring with PROSAC's quality-ordered
	// sampling.
	MethodPROMedS
)

// DefaultMethod is used when a configuration leaves Method unspecified.
const DefaultMethod = MethodPROMedS

func (m Method) String() string {
	switch m {
	case MethodRANSAC:
		return "ransac"
	case MethodLMedS:
		return "lmeds"
	case MethodMSAC:
		return "msac"
	case MethodPROSAC:
		return "prosac"
	case MethodPROMedS:
		return "promeds"
	default:
		return "unspecified"
	}
}

// ParseMethod maps a method name (as printed by String) to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "ransac":
		return MethodRANSAC, nil
	case "lmeds":
		return MethodLMedS, nil
	case "msac":
		return MethodMSAC, nil
	case "prosac":
		return MethodPROSAC, nil
	case "promeds":
		return MethodPROMedS, nil
	case "", "default":
		return DefaultMethod, nil
	}
	return MethodUnspecified, fmt.Errorf("unknown robust method %q", s)
}

// usesThreshold reports whether the method scores candidates against a
// fixed residual threshold.
func (m Method) usesThreshold() bool {
	return m == MethodRANSAC || m == MethodMSAC || m == MethodPROSAC
}

// usesQualityScores reports whether the method samples in quality order
// and therefore requires per-reading quality scores.
func (m Method) usesQualityScores() bool {
	return m == MethodPROSAC || m == MethodPROMedS
}
