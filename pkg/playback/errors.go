package playback

import (
	"errors"
	"fmt"
)

var (
	ErrClosed      = errors.New("the controller is closed")
	ErrInvalidMode = errors.New("invalid playback mode")
)

// PlaybackStartError is a failure to start one of the sources. The whole
// session is stopped when it happens.
type PlaybackStartError struct {
	Source string
	Err    error
}

func (e PlaybackStartError) Error() string {
	return fmt.Sprintf("unable to start the %s source: %v", e.Source, e.Err)
}

func (e PlaybackStartError) Unwrap() error {
	return e.Err
}
