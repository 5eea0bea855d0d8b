package features

import (
	"math"
)

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// newMelFilterbank returns numFilters triangular filters spread evenly on
// the mel scale between minFreq and the Nyquist frequency, each one
// defined over the fftSize/2 magnitude bins.
func newMelFilterbank(numFilters, fftSize, sampleRate int, minFreq float64) [][]float64 {
	nyquist := float64(sampleRate) / 2
	if minFreq >= nyquist {
		minFreq = 0
	}
	lowMel := hzToMel(minFreq)
	highMel := hzToMel(nyquist)

	bins := make([]int, numFilters+2)
	for i := range bins {
		mel := lowMel + float64(i)*(highMel-lowMel)/float64(numFilters+1)
		bins[i] = int(math.Floor(melToHz(mel) * float64(fftSize) / float64(sampleRate)))
	}

	numBins := fftSize / 2
	filters := make([][]float64, numFilters)
	for i := range filters {
		filter := make([]float64, numBins)
		left, center, right := bins[i], bins[i+1], bins[i+2]
		for j := left; j < center && j < numBins; j++ {
			filter[j] = float64(j-left) / float64(center-left)
		}
		for j := center; j < right && j < numBins; j++ {
			filter[j] = float64(right-j) / float64(right-center)
		}
		if center == right && center < numBins {
			filter[center] = 1
		}
		filters[i] = filter
	}
	return filters
}

// mfcc applies the filterbank to the magnitude spectrum, takes the log of
// the band energies and decorrelates them with a DCT-II.
func mfcc(spectrum []float64, filters [][]float64, numCoeffs int) []float64 {
	energies := make([]float64, len(filters))
	for i, filter := range filters {
		var e float64
		for j, w := range filter {
			if w == 0 {
				continue
			}
			e += spectrum[j] * spectrum[j] * w
		}
		energies[i] = math.Log(math.Max(e, 1e-10))
	}

	n := float64(len(energies))
	coeffs := make([]float64, numCoeffs)
	for k := range coeffs {
		var sum float64
		for j, e := range energies {
			sum += e * math.Cos(math.Pi*float64(k)*(float64(j)+0.5)/n)
		}
		coeffs[k] = sum
	}
	return coeffs
}
