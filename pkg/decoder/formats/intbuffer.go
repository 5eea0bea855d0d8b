// Package formats contains the helpers shared by the format decoders.
package formats

import (
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

// IntBufferToFloat32 normalizes integer PCM of the given bit depth to [-1, 1].
func IntBufferToFloat32(buf *goaudio.IntBuffer, bitDepth int) ([]float32, error) {
	if buf == nil {
		return nil, fmt.Errorf("no PCM buffer")
	}
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	var scale float32
	switch bitDepth {
	case 8:
		scale = 128
	case 16:
		scale = 32768
	case 24:
		scale = 8388608
	case 32:
		scale = 2147483648
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(v) / scale
	}
	return out, nil
}

// BufferDuration is the playback length of the interleaved frames in buf.
func BufferDuration(buf *goaudio.IntBuffer, channels int, sampleRate int) time.Duration {
	if buf == nil || channels <= 0 || sampleRate <= 0 {
		return 0
	}
	frames := len(buf.Data) / channels
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
