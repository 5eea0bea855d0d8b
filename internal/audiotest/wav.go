package audiotest

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// IntBuffer quantizes mono samples to 16 bits, duplicating them to every
// channel.
func IntBuffer(samples []float32, channels, sampleRate int) *goaudio.IntBuffer {
	data := make([]int, 0, len(samples)*channels)
	for _, v := range samples {
		for ch := 0; ch < channels; ch++ {
			data = append(data, int(math.Round(float64(v)*32767)))
		}
	}
	return &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
}

// WriteWAV writes a 16-bit PCM WAV file.
func WriteWAV(filePath string, samples []float32, channels, sampleRate int) (_err error) {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", filePath, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = err
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(IntBuffer(samples, channels, sampleRate)); err != nil {
		return fmt.Errorf("unable to write the samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return nil
}
