package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum returns the magnitude of the one-sided spectrum of data
// after removing its mean.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, len(coeffs)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// DominantFrequency returns the frequency in Hz of the strongest non-zero
// bin of data sampled every dt seconds. It returns 0 when there is no
// usable signal.
func DominantFrequency(data []float64, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return 0
	}

	best, peak := 0, 0.0
	for k := 1; k < len(ps); k++ {
		if ps[k] > peak {
			best, peak = k, ps[k]
		}
	}
	if best == 0 {
		return 0
	}
	return float64(best) / (float64(len(data)) * dt)
}

// RelativeDrift is the largest relative deviation of series from its first
// value.
func RelativeDrift(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	ref := series[0]
	denom := math.Abs(ref)
	if denom < 1e-12 {
		denom = 1
	}

	drift := 0.0
	for _, v := range series {
		if d := math.Abs(v-ref) / denom; d > drift {
			drift = d
		}
	}
	return drift
}
