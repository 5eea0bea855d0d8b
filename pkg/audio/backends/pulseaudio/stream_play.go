package pulseaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/avsync/pkg/audio/types"
)

var (
	// ErrUnderflow is reported by Drain when the source could not keep
	// the server-side buffer filled during playback.
	ErrUnderflow = errors.New("the playback buffer ran dry")

	// ErrStreamClosed is reported by Drain after Close.
	ErrStreamClosed = errors.New("the playback stream is closed")
)

// playStream owns a playback stream and the client that was opened
// exclusively for it.
type playStream struct {
	client *pulse.Client
	stream *pulse.PlaybackStream

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ types.PlayStream = (*playStream)(nil)

func newPlayStream(
	client *pulse.Client,
	stream *pulse.PlaybackStream,
) *playStream {
	return &playStream{
		client: client,
		stream: stream,
	}
}

func (s *playStream) Drain() error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	if s.stream == nil {
		return fmt.Errorf("the playback stream is not initialized")
	}
	s.stream.Drain()
	if err := s.stream.Error(); err != nil {
		return fmt.Errorf("an error occurred during playback: %w", err)
	}
	if s.stream.Underflow() {
		return ErrUnderflow
	}
	return nil
}

// Close stops the playback and releases the client. Repeated calls
// return the result of the first one.
func (s *playStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.release()
	})
	return s.closeErr
}

func (s *playStream) release() error {
	var mErr *multierror.Error
	if s.stream == nil {
		mErr = multierror.Append(mErr, fmt.Errorf("the playback stream is not initialized"))
	} else {
		mErr = multierror.Append(mErr, recoverCall("stop the playback", s.stream.Stop))
		mErr = multierror.Append(mErr, recoverCall("close the playback", s.stream.Close))
	}
	if s.client == nil {
		mErr = multierror.Append(mErr, fmt.Errorf("the Pulse client is not initialized"))
	} else {
		mErr = multierror.Append(mErr, recoverCall("close the Pulse client", s.client.Close))
	}
	return mErr.ErrorOrNil()
}

// recoverCall converts a panic inside fn into an error; the pulse
// library panics on some operations over a dead connection.
func recoverCall(action string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unable to %s: got a panic: %v", action, r)
		}
	}()
	fn()
	return nil
}
