// Package mp3 decodes MPEG-1/2 Layer III streams.
package mp3

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/xaionaro-go/avsync/pkg/decoder"
)

const (
	// go-mp3 always produces 16-bit little-endian stereo
	channels       = 2
	bytesPerSample = 2
	bytesPerFrame  = channels * bytesPerSample
)

type Decoder struct{}

var _ decoder.FormatDecoder = Decoder{}

func init() {
	decoder.RegisterFormatDecoder(Decoder{})
}

func (Decoder) Format() decoder.Format {
	return decoder.FormatMP3
}

func (Decoder) Extensions() []string {
	return []string{"mp3"}
}

func (Decoder) Decode(
	ctx context.Context,
	r io.ReadSeeker,
) (*decoder.PCM, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize an MP3 decoder: %w", err)
	}
	sampleRate := d.SampleRate()
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	var duration time.Duration
	if length := d.Length(); length > 0 {
		duration = time.Duration(length/bytesPerFrame) * time.Second / time.Duration(sampleRate)
	}

	var samples []float32
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := d.Read(buf)
		for i := 0; i+bytesPerSample <= n; i += bytesPerSample {
			v := int16(binary.LittleEndian.Uint16(buf[i:]))
			samples = append(samples, float32(v)/32768)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to decode: %w", err)
		}
	}
	samples = samples[:len(samples)-len(samples)%channels]

	return &decoder.PCM{
		Samples:          samples,
		Channels:         channels,
		SampleRate:       sampleRate,
		MetadataDuration: duration,
	}, nil
}
