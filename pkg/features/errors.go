package features

import (
	"errors"
	"fmt"
)

var (
	ErrNoSamples         = errors.New("no samples to extract features from")
	ErrNonFiniteSample   = errors.New("the frame contains a non-finite sample")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)

// FeatureExtractionError describes a single frame that could not be
// analyzed. Such frames are skipped.
type FeatureExtractionError struct {
	Frame       int
	StartSample int
	Err         error
}

func (e FeatureExtractionError) Error() string {
	return fmt.Sprintf("unable to extract features of frame %d (sample %d): %v", e.Frame, e.StartSample, e.Err)
}

func (e FeatureExtractionError) Unwrap() error {
	return e.Err
}
