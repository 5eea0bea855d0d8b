// Package wav decodes RIFF/WAVE files with integer PCM.
package wav

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/avsync/pkg/decoder"
	"github.com/xaionaro-go/avsync/pkg/decoder/formats"
)

const wavFormatPCM = 1

type Decoder struct{}

var _ decoder.FormatDecoder = Decoder{}

func init() {
	decoder.RegisterFormatDecoder(Decoder{})
}

func (Decoder) Format() decoder.Format {
	return decoder.FormatWAV
}

func (Decoder) Extensions() []string {
	return []string{"wav", "wave"}
}

func (Decoder) Decode(
	ctx context.Context,
	r io.ReadSeeker,
) (*decoder.PCM, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV audio format %d (only integer PCM is supported)", d.WavAudioFormat)
	}

	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("invalid WAV header: %d channels, %d Hz", d.NumChans, d.SampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to read the PCM data: %w", err)
	}
	samples, err := formats.IntBufferToFloat32(buf, int(d.BitDepth))
	if err != nil {
		return nil, err
	}
	// Decoder.Duration over-reports, the frame count is exact.
	duration := formats.BufferDuration(buf, int(d.NumChans), int(d.SampleRate))
	logger.Tracef(ctx, "decoded %d WAV samples, %v", len(samples), duration)

	return &decoder.PCM{
		Samples:          samples,
		Channels:         int(d.NumChans),
		SampleRate:       int(d.SampleRate),
		MetadataDuration: duration,
	}, nil
}
