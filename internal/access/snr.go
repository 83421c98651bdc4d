package access

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// maxCoherence bounds coherence before the SNR division
	maxCoherence = 0.99999
	// RejectionRatio scales the statistical coherence floor in CoherenceSNR
	RejectionRatio = 1.5
)

// TransferSNR converts coherence to a transfer function SNR estimate,
// coh^2/(1-coh^2) scaled by the number of averages.
func TransferSNR(coh []float64, averages int) []float64 {
	out := make([]float64, len(coh))
	for i, c := range coh {
		out[i] = c * c / (1 - c*c)
	}
	floats.Scale(float64(averages), out)
	return out
}

// CombineSNR combines the SNR of two ratios sharing a denominator channel
func CombineSNR(snrNum, snrDen []float64) []float64 {
	n := min(len(snrNum), len(snrDen))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = 1 / (1/snrDen[i] + 1/snrNum[i])
	}
	return out
}

// CoherenceSNR estimates the SNR of a transfer numerator. Coherence is capped
// for numerical stability. With averages > 0 the estimate is scaled by
// sqrt(averages) and bins below RejectionRatio times the statistical floor
// are zeroed.
func CoherenceSNR(coh []float64, averages int) []float64 {
	out := make([]float64, len(coh))
	for i, c := range coh {
		c = math.Min(c, maxCoherence)
		out[i] = c * c / (1 - c*c)
	}
	if averages <= 0 {
		return out
	}
	root := math.Sqrt(float64(averages))
	floor := RejectionRatio / root
	floats.Scale(root, out)
	for i, c := range coh {
		if math.Min(c, maxCoherence) < floor {
			out[i] = 0
		}
	}
	return out
}

// SNREstimate converts a transfer SNR into the excess-over-noise estimate
// max(snr^2 - 1, 0) stored by the aggregator.
func SNREstimate(snr []float64) []float64 {
	out := make([]float64, len(snr))
	for i, s := range snr {
		out[i] = math.Max(s*s-1, 0)
	}
	return out
}
