package decoder

import (
	"errors"
	"fmt"
)

var (
	ErrContextClosed = errors.New("the decoding context is closed")
)

type ErrUnknownFormat struct {
	Locator string
}

func (e ErrUnknownFormat) Error() string {
	return fmt.Sprintf("unable to detect the format of '%s'", e.Locator)
}

type ErrUnsupportedLocator struct {
	Locator string
}

func (e ErrUnsupportedLocator) Error() string {
	return fmt.Sprintf("unsupported locator '%s'", e.Locator)
}

// DecodeError is the failure of all the attempts to decode a track.
type DecodeError struct {
	Locator  string
	Attempts int
	Err      error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("unable to decode '%s' (%d attempts): %v", e.Locator, e.Attempts, e.Err)
}

func (e DecodeError) Unwrap() error {
	return e.Err
}
