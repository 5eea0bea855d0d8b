// Package aiff decodes AIFF files.
package aiff

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-audio/aiff"
	"github.com/xaionaro-go/avsync/pkg/decoder"
	"github.com/xaionaro-go/avsync/pkg/decoder/formats"
)

type Decoder struct{}

var _ decoder.FormatDecoder = Decoder{}

func init() {
	decoder.RegisterFormatDecoder(Decoder{})
}

func (Decoder) Format() decoder.Format {
	return decoder.FormatAIFF
}

func (Decoder) Extensions() []string {
	return []string{"aif", "aiff", "aifc"}
}

func (Decoder) Decode(
	ctx context.Context,
	r io.ReadSeeker,
) (*decoder.PCM, error) {
	d := aiff.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid AIFF file")
	}
	d.ReadInfo()
	if d.NumChans == 0 || d.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid AIFF header: %d channels, %d Hz", d.NumChans, d.SampleRate)
	}

	duration, err := d.Duration()
	if err != nil {
		logger.Debugf(ctx, "unable to get the AIFF duration: %v", err)
		duration = 0
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to read the PCM data: %w", err)
	}
	samples, err := formats.IntBufferToFloat32(buf, int(d.BitDepth))
	if err != nil {
		return nil, err
	}

	return &decoder.PCM{
		Samples:          samples,
		Channels:         int(d.NumChans),
		SampleRate:       d.SampleRate,
		MetadataDuration: duration,
	}, nil
}
