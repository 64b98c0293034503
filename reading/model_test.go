package reading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathLossConstant(t *testing.T) {
	t.Parallel()

	// k = c / (4π·f); at 2.4 GHz the constant is roughly one centimeter.
	k := PathLossConstant(2.4e9)
	assert.InDelta(t, 0.00994, k, 1e-4)

	// Halving the frequency doubles the constant.
	assert.InDelta(t, 2*k, PathLossConstant(1.2e9), 1e-12)
}

func TestRSSIModelInversion(t *testing.T) {
	t.Parallel()

	const (
		frequency = 2.4e9
		power     = 20.0
	)
	k := PathLossConstant(frequency)

	for _, pathLoss := range []float64{1.6, 2.0, 3.5} {
		for _, distance := range []float64{0.5, 10, 250} {
			rssi := ExpectedRSSI(power, pathLoss, k, distance)
			back := DistanceFromRSSI(rssi, power, pathLoss, k)
			assert.InDelta(t, distance, back, distance*1e-9,
				"pathLoss=%v distance=%v", pathLoss, distance)
		}
	}
}

func TestExpectedRSSIMonotonicInDistance(t *testing.T) {
	t.Parallel()

	k := PathLossConstant(868e6)
	prev := ExpectedRSSI(14, 2, k, 1)
	for _, d := range []float64{2, 5, 20, 100} {
		cur := ExpectedRSSI(14, 2, k, d)
		assert.Less(t, cur, prev, "received power must decay with distance")
		prev = cur
	}
}

func TestExpectedRSSIPowerOffset(t *testing.T) {
	t.Parallel()

	// Transmitted power enters the model additively in dB.
	k := PathLossConstant(2.4e9)
	low := ExpectedRSSI(10, 2, k, 42)
	high := ExpectedRSSI(16, 2, k, 42)
	assert.InDelta(t, 6.0, high-low, 1e-12)
}
