// Package audiotest generates deterministic test signals.
package audiotest

import (
	"math"
	"math/rand"
)

// Silence returns n zero samples.
func Silence(n int) []float32 {
	return make([]float32, n)
}

// Sine returns n samples of a sine wave.
func Sine(sampleRate int, n int, frequency float64, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return out
}

// Noise returns n samples of uniform white noise in [-amplitude, amplitude].
func Noise(seed int64, n int, amplitude float64) []float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * (r.Float64()*2 - 1))
	}
	return out
}

// Bursts returns a signal of noise bursts separated by silent gaps of
// pseudo-random lengths, which gives both distinct onsets and a
// non-periodic structure to correlate against.
func Bursts(seed int64, sampleRate int, seconds float64, amplitude float64) []float32 {
	r := rand.New(rand.NewSource(seed))
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	pos := 0
	for pos < n {
		burst := int((0.2 + 0.4*r.Float64()) * float64(sampleRate))
		gap := int((0.3 + 0.9*r.Float64()) * float64(sampleRate))
		for i := pos; i < pos+burst && i < n; i++ {
			out[i] = float32(amplitude * (r.Float64()*2 - 1))
		}
		pos += burst + gap
	}
	return out
}

// Delay returns a copy of src preceded by the given amount of silent
// samples and truncated to the original length. A negative amount
// advances the signal instead: the leading samples are dropped and the
// tail is padded with silence.
func Delay(src []float32, samples int) []float32 {
	out := make([]float32, len(src))
	switch {
	case samples >= len(src), -samples >= len(src):
		return out
	case samples < 0:
		copy(out, src[-samples:])
		return out
	}
	copy(out[samples:], src[:len(src)-samples])
	return out
}
