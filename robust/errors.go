package robust

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned by setters and Estimate when an estimation
	// is already in progress on the same instance. The caller may retry
	// once the in-flight call returns.
	ErrLocked = errors.New("estimator is locked by an in-progress estimation")

	// ErrNotReady is returned by Estimate when the estimator is missing
	// readings, quality scores or required initial values. Completing
	// the configuration makes the call valid.
	ErrNotReady = errors.New("estimator is not ready")

	// ErrInvalidConfig wraps synchronous configuration rejections;
	// the prior configuration is left untouched.
	ErrInvalidConfig = errors.New("invalid estimator configuration")
)

// EstimationError reports that the consensus algorithm exhausted its
// iteration budget without producing any valid solution, or that every
// sampled subset was numerically degenerate. The estimator is unlocked
// and its previous results (if any) are untouched when this is returned.
type EstimationError struct {
	Method Method
	Reason string
	Cause  error
}

func (e *EstimationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s estimation failed: %s: %v", e.Method, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s estimation failed: %s", e.Method, e.Reason)
}

func (e *EstimationError) Unwrap() error { return e.Cause }
