package gccphat

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// CrossCorrelate calculates the lag (in samples) of 'fcomp' relative to
// 'fref' using GCC-PHAT. The arguments are the FFTs of the zero-padded
// reference and comparison snippets, both of the same length N.
//
// Only the bins within [minFreq, maxFreq] are whitened and kept (0 means
// no limit), and only the lags within ±maxLag are considered (0 means
// no limit).
//
// Returns (lag, confidence, error). A positive lag means 'comp' is
// delayed relative to 'ref': comp(t) = ref(t-lag).
func CrossCorrelate(
	fref, fcomp []complex128,
	sampleRate float64,
	minFreq, maxFreq float64,
	maxLag int,
) (float64, float64, error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("sampleRate must be positive: got %v", sampleRate)
	}
	if len(fref) != len(fcomp) {
		return 0, 0, fmt.Errorf("fref and fcomp must have same length: %d != %d", len(fref), len(fcomp))
	}
	n := len(fref)
	if n == 0 {
		return 0, 0, fmt.Errorf("empty spectrum")
	}

	binMin := 0
	binMax := n / 2
	if minFreq > 0 {
		binMin = int(minFreq * float64(n) / sampleRate)
	}
	if maxFreq > 0 && maxFreq < sampleRate/2 {
		binMax = int(maxFreq * float64(n) / sampleRate)
	}

	res := make([]complex128, n)

	// only the bins within 60dB from the strongest one are whitened,
	// the rest is just noise amplified by the normalization
	maxMag := 0.0
	for i := 0; i < n; i++ {
		mag := cmplx.Abs(fcomp[i] * cmplx.Conj(fref[i]))
		if mag > maxMag {
			maxMag = mag
		}
	}
	threshold := maxMag * 0.001

	activeBins := 0
	for i := 0; i < n; i++ {
		idx := i
		if i > n/2 {
			idx = n - i
		}
		if idx < binMin || idx > binMax {
			continue
		}

		prod := fcomp[i] * cmplx.Conj(fref[i])
		mag := cmplx.Abs(prod)
		if mag > threshold && mag > 1e-12 {
			res[i] = prod / complex(mag, 0)
			activeBins++
		}
	}
	if activeBins == 0 {
		return 0, 0, nil
	}

	timeDomain := fft.IFFT(res)

	if maxLag <= 0 || maxLag > n/2 {
		maxLag = n / 2
	}
	lagAt := func(idx int) int {
		if idx > n/2 {
			return idx - n
		}
		return idx
	}

	maxVal := -1.0
	maxIdx := 0
	for i := 0; i < n; i++ {
		lag := lagAt(i)
		if lag > maxLag || lag < -maxLag {
			continue
		}
		val := cmplx.Abs(timeDomain[i])
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	shift := float64(lagAt(maxIdx))

	// parabolic sub-sample interpolation
	y1 := cmplx.Abs(timeDomain[(maxIdx-1+n)%n])
	y2 := maxVal
	y3 := cmplx.Abs(timeDomain[(maxIdx+1)%n])
	if denom := y1 - 2*y2 + y3; math.Abs(denom) > 1e-12 {
		delta := (y1 - y3) / (2 * denom)
		if math.Abs(delta) <= 0.5 {
			shift += delta
		}
	}

	// a perfect match has a peak of activeBins/n: activeBins bins of a
	// unit magnitude, and IFFT divides by n
	confidence := maxVal * float64(n) / float64(activeBins)
	if confidence > 1.0 {
		confidence = 1.0
	}

	return shift, confidence, nil
}
