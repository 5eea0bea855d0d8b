package playback

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/audio"
	"github.com/xaionaro-go/avsync/pkg/audio/resampler"
	"github.com/xaionaro-go/avsync/pkg/track"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
)

const bytesPerSample = 4

// PCMSource plays a decoded track through a PCM player. The position is
// the amount of samples consumed by the player, so it runs ahead of what
// is audible by up to the player's buffer.
type PCMSource struct {
	Track      *track.AudioTrack
	Player     audio.PlayerPCM
	BufferSize time.Duration

	locker      sync.Mutex
	position    int
	counter     *datacounter.ReaderCounter
	counterBase int
	stream      audio.PlayStream
	cancelFn    context.CancelFunc
	ended       bool
	closed      bool
}

var _ Source = (*PCMSource)(nil)

func NewPCMSource(
	t *track.AudioTrack,
	player audio.PlayerPCM,
) *PCMSource {
	return &PCMSource{
		Track:      t,
		Player:     player,
		BufferSize: audio.BufferSize,
	}
}

func (s *PCMSource) Play(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Play(%s)", s.Track.Locator)
	defer func() { logger.Tracef(ctx, "/Play(%s): %v", s.Track.Locator, _err) }()

	s.locker.Lock()
	defer s.locker.Unlock()
	if s.closed {
		return fmt.Errorf("the source is closed")
	}
	if s.stream != nil {
		return nil
	}
	if s.position >= len(s.Track.Samples) {
		s.ended = true
		return nil
	}

	payload := resampler.Float32LEBytes(s.Track.Samples[s.position:])
	counter := datacounter.NewReaderCounter(bytes.NewReader(payload))

	ctx, cancelFn := context.WithCancel(ctx)
	stream, err := s.Player.PlayPCM(
		ctx,
		audio.SampleRate(s.Track.SampleRate),
		1,
		audio.PCMFormatFloat32LE,
		s.BufferSize,
		counter,
	)
	if err != nil {
		cancelFn()
		return fmt.Errorf("unable to start playing '%s': %w", s.Track.Locator, err)
	}

	s.counter = counter
	s.counterBase = s.position
	s.stream = stream
	s.cancelFn = cancelFn
	s.ended = false

	observability.Go(ctx, func() {
		err := stream.Drain()
		if err != nil {
			logger.Debugf(ctx, "the stream of '%s' ended with an error: %v", s.Track.Locator, err)
		}
		s.onDrained(stream)
	})
	return nil
}

func (s *PCMSource) onDrained(stream audio.PlayStream) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.stream != stream {
		return
	}
	s.updatePositionLocked()
	s.releaseStreamLocked()
	s.ended = s.position >= len(s.Track.Samples)
}

func (s *PCMSource) updatePositionLocked() {
	if s.counter == nil {
		return
	}
	s.position = s.counterBase + int(s.counter.Count()/bytesPerSample)
	if s.position > len(s.Track.Samples) {
		s.position = len(s.Track.Samples)
	}
}

func (s *PCMSource) releaseStreamLocked() error {
	if s.stream == nil {
		return nil
	}
	s.cancelFn()
	err := s.stream.Close()
	s.stream = nil
	s.counter = nil
	s.cancelFn = nil
	return err
}

func (s *PCMSource) Pause() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.updatePositionLocked()
	return s.releaseStreamLocked()
}

func (s *PCMSource) Seek(position time.Duration) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.stream != nil {
		return fmt.Errorf("unable to seek while playing")
	}
	if position < 0 {
		position = 0
	}
	idx := int(position.Seconds() * float64(s.Track.SampleRate))
	if idx > len(s.Track.Samples) {
		idx = len(s.Track.Samples)
	}
	s.position = idx
	s.ended = false
	return nil
}

func (s *PCMSource) CurrentTime() time.Duration {
	s.locker.Lock()
	defer s.locker.Unlock()
	pos := s.position
	if s.counter != nil {
		pos = s.counterBase + int(s.counter.Count()/bytesPerSample)
	}
	return time.Duration(pos) * time.Second / time.Duration(s.Track.SampleRate)
}

func (s *PCMSource) Duration() time.Duration {
	return s.Track.PlaybackDuration()
}

func (s *PCMSource) Ended() bool {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.ended
}

func (s *PCMSource) Close() error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.closed = true
	return s.releaseStreamLocked()
}
