// Package vorbis decodes Ogg Vorbis streams.
package vorbis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/avsync/pkg/decoder"
)

type Decoder struct{}

var _ decoder.FormatDecoder = Decoder{}

func init() {
	decoder.RegisterFormatDecoder(Decoder{})
}

func (Decoder) Format() decoder.Format {
	return decoder.FormatVorbis
}

func (Decoder) Extensions() []string {
	return []string{"ogg", "oga"}
}

func (Decoder) Decode(
	ctx context.Context,
	r io.ReadSeeker,
) (*decoder.PCM, error) {
	d, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	sampleRate, channels := d.SampleRate(), d.Channels()
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid stream parameters: %d Hz, %d channels", sampleRate, channels)
	}

	var duration time.Duration
	if length := d.Length(); length > 0 {
		duration = time.Duration(length) * time.Second / time.Duration(sampleRate)
	}

	var samples []float32
	buf := make([]float32, 4096*channels)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// the amount of values, always a multiple of the amount of channels
		n, err := d.Read(buf)
		samples = append(samples, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to decode: %w", err)
		}
	}

	return &decoder.PCM{
		Samples:          samples,
		Channels:         channels,
		SampleRate:       sampleRate,
		MetadataDuration: duration,
	}, nil
}
