package reading

import "math"

// Isotropic free-space propagation model relating received power to
// distance:
//
//	Pr(dBm) = 10·n·log10(k) + Pte(dBm) − 5·n·log10(d²)
//
// where k = c / (4π·f), n is the path-loss exponent and d the distance
// from the emitter to the receiver.
const (
	// SpeedOfLight is the propagation speed in m/s.
	SpeedOfLight = 299_792_458.0

	// DefaultPathLossExponent models free-space decay. Indoor and
	// cluttered environments typically sit between 1.6 and 4.
	DefaultPathLossExponent = 2.0
)

// PathLossConstant returns k = c / (4π·f) for a carrier frequency in Hz.
func PathLossConstant(frequencyHz float64) float64 {
	return SpeedOfLight / (4 * math.Pi * frequencyHz)
}

// ExpectedRSSI returns the received power in dBm predicted by the
// isotropic model for a given transmitted power, path-loss exponent,
// path-loss constant k and emitter-receiver distance.
func ExpectedRSSI(txPowerdBm, pathLossExponent, k, distance float64) float64 {
	return 10*pathLossExponent*math.Log10(k) + txPowerdBm -
		5*pathLossExponent*math.Log10(distance*distance)
}

// DistanceFromRSSI inverts the isotropic model, returning the distance
// implied by a received power for known transmitted power and path-loss
// exponent.
func DistanceFromRSSI(rssidBm, txPowerdBm, pathLossExponent, k float64) float64 {
	return k * math.Pow(10, (txPowerdBm-rssidBm)/(10*pathLossExponent))
}
