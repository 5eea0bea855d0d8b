// Package track holds decoded mono audio tracks and their display waveform.
package track

import (
	"fmt"
	"math"
	"time"
)

const (
	// WaveformPoints is the length of every visualization waveform.
	WaveformPoints = 150

	// waveformFloor avoids a division by zero on silent input.
	waveformFloor = 0.01
)

// AudioTrack is a decoded single-channel audio source. It is never
// modified after construction.
type AudioTrack struct {
	Locator    string
	Samples    []float32
	SampleRate int

	// MetadataDuration is the duration declared by the container, if known.
	// It may disagree with the duration derived from the samples.
	MetadataDuration time.Duration

	Waveform []float64

	// Synthetic is true for placeholder data generated after a decoding failure.
	Synthetic bool
}

// New builds a track and its waveform.
func New(
	locator string,
	samples []float32,
	sampleRate int,
	metadataDuration time.Duration,
) (*AudioTrack, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: got %d", sampleRate)
	}
	return &AudioTrack{
		Locator:          locator,
		Samples:          samples,
		SampleRate:       sampleRate,
		MetadataDuration: metadataDuration,
		Waveform:         Waveform(samples),
	}, nil
}

// Duration derived from the samples.
func (t *AudioTrack) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(t.Samples)) * time.Second / time.Duration(t.SampleRate)
}

// PlaybackDuration is the duration to normalize the playback progress by:
// the container metadata one when it is known, the derived one otherwise.
func (t *AudioTrack) PlaybackDuration() time.Duration {
	if t.MetadataDuration > 0 {
		return t.MetadataDuration
	}
	return t.Duration()
}

// Waveform splits samples into WaveformPoints contiguous blocks, averages
// the absolute amplitude of each block and normalizes the result by the
// largest block (but never by less than 0.01). The result is only meant
// to be displayed.
func Waveform(samples []float32) []float64 {
	out := make([]float64, WaveformPoints)
	if len(samples) == 0 {
		return out
	}

	blockSize := len(samples) / WaveformPoints
	if blockSize == 0 {
		blockSize = 1
	}

	peak := waveformFloor
	for i := range out {
		start := i * blockSize
		if start >= len(samples) {
			break
		}
		end := start + blockSize
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, v := range samples[start:end] {
			a := math.Abs(float64(v))
			if math.IsNaN(a) || math.IsInf(a, 0) {
				continue
			}
			sum += a
		}
		out[i] = sum / float64(end-start)
		if out[i] > peak {
			peak = out[i]
		}
	}

	for i := range out {
		out[i] /= peak
		if out[i] > 1 {
			out[i] = 1
		}
	}
	return out
}

const (
	syntheticSeconds   = 10
	syntheticFrequency = 440
	syntheticAmplitude = 0.5
	syntheticBeatHz    = 1
)

// Synthetic returns a deterministic placeholder track: a 440 Hz tone
// gated on and off once per second. It stands in for a track which could
// not be decoded, and is clearly not representative of any real content.
func Synthetic(locator string, sampleRate int) *AudioTrack {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	samples := SyntheticSamples(sampleRate)
	return &AudioTrack{
		Locator:    locator,
		Samples:    samples,
		SampleRate: sampleRate,
		Waveform:   Waveform(samples),
		Synthetic:  true,
	}
}

// SyntheticSamples returns the samples of Synthetic.
func SyntheticSamples(sampleRate int) []float32 {
	n := syntheticSeconds * sampleRate
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		if math.Mod(t*syntheticBeatHz, 1) >= 0.5 {
			continue
		}
		samples[i] = float32(syntheticAmplitude * math.Sin(2*math.Pi*syntheticFrequency*t))
	}
	return samples
}
