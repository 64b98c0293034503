package reading

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Reading is a single located observation of a radio source: a distance
// measurement (e.g. from time-of-flight ranging), a received signal
// strength in dBm, or both. Readings are value objects owned by the
// caller; estimators hold a read-only reference list for the duration of
// an Estimate call and never mutate them.
type Reading struct {
	Source   Source
	Position Point

	// Ranging component.
	HasDistance bool
	Distance    float64
	// DistanceStdDev is the 1-sigma uncertainty of Distance.
	// Zero means unknown (unweighted).
	DistanceStdDev float64

	// RSSI component.
	HasRSSI bool
	RSSIdBm float64
	// RSSIStdDev is the 1-sigma uncertainty of RSSIdBm in dB.
	// Zero means unknown (unweighted).
	RSSIStdDev float64

	// PositionCovariance is the optional covariance of the receiver
	// position itself. Nil when the position is treated as exact.
	PositionCovariance *mat.SymDense
}

// NewRanging builds a distance-only reading.
func NewRanging(src Source, position Point, distance float64) Reading {
	return Reading{
		Source:      src,
		Position:    position.Clone(),
		HasDistance: true,
		Distance:    distance,
	}
}

// NewRSSI builds a signal-strength-only reading.
func NewRSSI(src Source, position Point, rssidBm float64) Reading {
	return Reading{
		Source:   src,
		Position: position.Clone(),
		HasRSSI:  true,
		RSSIdBm:  rssidBm,
	}
}

// NewMixed builds a reading carrying both a distance and an RSSI value.
func NewMixed(src Source, position Point, distance, rssidBm float64) Reading {
	return Reading{
		Source:      src,
		Position:    position.Clone(),
		HasDistance: true,
		Distance:    distance,
		HasRSSI:     true,
		RSSIdBm:     rssidBm,
	}
}

// Validate checks structural soundness against an expected dimensionality.
func (r Reading) Validate(dims int) error {
	if r.Position.Dims() != dims {
		return fmt.Errorf("reading position has %d dims, want %d", r.Position.Dims(), dims)
	}
	if !r.Position.IsFinite() {
		return fmt.Errorf("reading position is not finite")
	}
	if !r.HasDistance && !r.HasRSSI {
		return fmt.Errorf("reading carries neither distance nor RSSI")
	}
	if r.HasDistance && r.Distance < 0 {
		return fmt.Errorf("negative distance %v", r.Distance)
	}
	if r.HasRSSI && r.Source.FrequencyHz <= 0 {
		return fmt.Errorf("RSSI reading requires a positive source frequency, got %v", r.Source.FrequencyHz)
	}
	return nil
}

// RangingOnly returns a copy stripped to its distance component.
// Used by the sequential estimator to run a ranging-only pass.
func (r Reading) RangingOnly() Reading {
	out := r
	out.HasRSSI = false
	out.RSSIdBm = 0
	out.RSSIStdDev = 0
	return out
}

// RSSIOnly returns a copy stripped to its signal-strength component.
func (r Reading) RSSIOnly() Reading {
	out := r
	out.HasDistance = false
	out.Distance = 0
	out.DistanceStdDev = 0
	return out
}
