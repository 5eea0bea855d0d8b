// Package syncer defines the correlation methods estimating the offset
// between two tracks.
package syncer

import (
	"context"
	"fmt"
	"math"

	"github.com/xaionaro-go/avsync/pkg/features"
	"github.com/xaionaro-go/avsync/pkg/track"
)

const (
	// MaxShift is the largest offset (in seconds, both directions) any
	// method searches for.
	MaxShift = 5.0
)

type Method string

const (
	MethodBasicCorrelation = Method("basic-correlation")
	MethodMFCC             = Method("mfcc")
	MethodOnset            = Method("onset")
	MethodGCCPHAT          = Method("gcc-phat")
)

func (m Method) String() string {
	return string(m)
}

// ShiftResult is a single offset candidate.
type ShiftResult struct {
	// Shift is the offset in seconds; a positive value means the
	// comparison track starts later than the reference one.
	Shift float64

	// Confidence is method specific: it is not necessarily in [0, 1].
	Confidence float64

	Method Method
}

func (r ShiftResult) String() string {
	return fmt.Sprintf("%s:%+.3fs(%.3f)", r.Method, r.Shift, r.Confidence)
}

// Input is everything a method may look at for a single track.
type Input struct {
	Track    *track.AudioTrack
	Features *features.FeatureSet
}

type Syncer interface {
	Method() Method

	// CalculateShiftBetween returns the offsets (in seconds) the comparison
	// track needs to be shifted by to get synced with the reference track.
	// It may return no candidates at all.
	CalculateShiftBetween(
		ctx context.Context,
		reference *Input,
		comparison *Input,
	) ([]ShiftResult, error)
}

// SamplesOf returns the samples and the sample rate of both inputs, and
// fails if they are absent or were decoded at different rates.
func SamplesOf(reference, comparison *Input) ([]float32, []float32, int, error) {
	if reference == nil || reference.Track == nil {
		return nil, nil, 0, fmt.Errorf("the reference track is not set")
	}
	if comparison == nil || comparison.Track == nil {
		return nil, nil, 0, fmt.Errorf("the comparison track is not set")
	}
	if reference.Track.SampleRate != comparison.Track.SampleRate {
		return nil, nil, 0, ErrSampleRateMismatch{
			Reference:  reference.Track.SampleRate,
			Comparison: comparison.Track.SampleRate,
		}
	}
	if reference.Track.SampleRate <= 0 {
		return nil, nil, 0, fmt.Errorf("invalid sample rate: %d", reference.Track.SampleRate)
	}
	return reference.Track.Samples, comparison.Track.Samples, reference.Track.SampleRate, nil
}

// FeaturesOf returns the feature sets of both inputs.
func FeaturesOf(reference, comparison *Input) (*features.FeatureSet, *features.FeatureSet, error) {
	if reference == nil || reference.Features == nil {
		return nil, nil, fmt.Errorf("the reference features are not set")
	}
	if comparison == nil || comparison.Features == nil {
		return nil, nil, fmt.Errorf("the comparison features are not set")
	}
	return reference.Features, comparison.Features, nil
}

// InRange reports whether the shift is finite and within ±MaxShift.
func InRange(shift float64) bool {
	return !math.IsNaN(shift) && shift >= -MaxShift && shift <= MaxShift
}
