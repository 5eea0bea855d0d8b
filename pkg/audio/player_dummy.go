package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/audio/types"
	"github.com/xaionaro-go/observability"
)

// PlayerPCMDummy is a silent player: it reads the PCM data at the
// real-time pace, so that the position tracking and end-of-stream
// detection keep working on machines without an audio output.
type PlayerPCMDummy struct{}

var _ PlayerPCM = PlayerPCMDummy{}

func (PlayerPCMDummy) Close() error {
	return nil
}

func (PlayerPCMDummy) Ping(context.Context) error {
	return nil
}

func (PlayerPCMDummy) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (PlayStream, error) {
	chunkSize := types.BytesForDuration(sampleRate, channels, format, bufferSize)
	if chunkSize == 0 {
		return nil, fmt.Errorf("buffer size %v is too small for %d Hz, %d channels, %v", bufferSize, sampleRate, channels, format)
	}

	ctx, cancelFn := context.WithCancel(ctx)
	s := &StreamDummy{
		cancelFn: cancelFn,
		doneCh:   make(chan struct{}),
	}
	observability.Go(ctx, func() {
		defer close(s.doneCh)
		s.setError(s.consumeLoop(ctx, reader, bufferSize, chunkSize))
	})
	return s, nil
}

type StreamDummy struct {
	cancelFn context.CancelFunc
	doneCh   chan struct{}
	locker   sync.Mutex
	err      error
}

var _ PlayStream = (*StreamDummy)(nil)

func (s *StreamDummy) consumeLoop(
	ctx context.Context,
	reader io.Reader,
	period time.Duration,
	chunkSize uint64,
) (_err error) {
	logger.Tracef(ctx, "consumeLoop")
	defer func() { logger.Tracef(ctx, "/consumeLoop: %v", _err) }()

	buf := make([]byte, chunkSize)
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		_, err := io.ReadFull(reader, buf)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("unable to read: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (s *StreamDummy) setError(err error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.err = err
}

func (s *StreamDummy) Drain() error {
	<-s.doneCh
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.err
}

func (s *StreamDummy) Close() error {
	s.cancelFn()
	return nil
}
