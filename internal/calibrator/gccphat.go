package calibrator

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// peak is one local maximum found in a GCC-PHAT correlation, in
// milliseconds of lag (capture relative to reference: positive means the
// captured audio trails the reference).
type peak struct {
	lagMS float64
	value float64
}

// gccPHAT computes the generalized cross-correlation, phase transform
// between two equal-length real signals and restricts the result to lags
// within +/-maxLagMS, per spec §4.6 step 3-4: mean-subtract, zero-pad to
// the next power of two, FFT both, whiten the cross-spectrum, inverse
// FFT, and rearrange into a linear, center-zero-lag correlation.
func gccPHAT(reference, captured []float32, sampleRate float64, maxLagMS float64) []peak {
	n := len(reference)
	if n == 0 || len(captured) != n {
		return nil
	}

	ref := meanSubtract(reference)
	capt := meanSubtract(captured)

	padded := nextPowerOfTwo(2 * n)
	refPadded := make([]float64, padded)
	capPadded := make([]float64, padded)
	copy(refPadded, ref)
	copy(capPadded, capt)

	fft := fourier.NewFFT(padded)
	R := fft.Coefficients(nil, refPadded)
	C := fft.Coefficients(nil, capPadded)

	cross := make([]complex128, len(R))
	for k := range cross {
		x := C[k] * cmplxConj(R[k])
		mag := cmplxAbs(x)
		cross[k] = x / complex(mag+1e-10, 0)
	}

	corrCircular := fft.Sequence(nil, cross)

	// corrCircular[0] is zero lag; corrCircular[i] for i<=padded/2 is lag
	// +i samples, corrCircular[padded-i] is lag -i. Rearrange into a
	// linear, negative-to-positive lag array centered at index
	// len(corr)/2, restricted to +/- maxLagMS.
	maxLagSamples := int(math.Round(maxLagMS / 1000.0 * sampleRate))
	if maxLagSamples <= 0 || maxLagSamples >= padded/2 {
		maxLagSamples = padded/2 - 1
	}

	// Peak detection and ranking both operate on the magnitude of the
	// correlation, not its signed value: a strong negative-going trough is
	// a legitimate GCC-PHAT peak for anti-phase capture, and a weak
	// positive blip must never outrank a much stronger negative one.
	var peaks []peak
	for lag := -maxLagSamples; lag <= maxLagSamples; lag++ {
		idx := lag
		if idx < 0 {
			idx += padded
		}
		v := math.Abs(corrCircular[idx])
		if !isLocalMaximum(corrCircular, idx, padded) {
			continue
		}
		peaks = append(peaks, peak{
			lagMS: float64(lag) / sampleRate * 1000.0,
			value: v,
		})
	}

	return topPeaks(peaks, 5)
}

func isLocalMaximum(series []float64, idx, n int) bool {
	cur := math.Abs(series[idx])
	prev := math.Abs(series[(idx-1+n)%n])
	next := math.Abs(series[(idx+1)%n])
	return cur >= prev && cur >= next
}

func topPeaks(peaks []peak, k int) []peak {
	// Simple partial selection sort: the candidate lists here are small
	// (a handful of local maxima within a +/-250ms search window).
	for i := 0; i < len(peaks) && i < k; i++ {
		best := i
		for j := i + 1; j < len(peaks); j++ {
			if peaks[j].value > peaks[best].value {
				best = j
			}
		}
		peaks[i], peaks[best] = peaks[best], peaks[i]
	}
	if len(peaks) > k {
		peaks = peaks[:k]
	}
	return peaks
}

func meanSubtract(samples []float32) []float64 {
	out := make([]float64, len(samples))
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))
	for i, s := range samples {
		out[i] = float64(s) - mean
	}
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func cmplxConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
