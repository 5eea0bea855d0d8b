// Package mfcc correlates the cepstral fingerprints of the tracks: it is
// insensitive to the gain and (mostly) to the timbre of the recording
// devices.
package mfcc

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/features"
	"github.com/xaionaro-go/avsync/pkg/syncer"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultMaxFrames  = 1000
	DefaultLagStep    = 1
	DefaultMinOverlap = 2

	tieTolerance = 1e-9
)

type Syncer struct {
	// MaxFrames limits the amount of cepstral frames used from each track.
	MaxFrames int

	// LagStep is the increment of the searched lag, in stored cepstral frames.
	LagStep int

	// MinOverlap is the minimal amount of overlapping frames for a lag
	// to be considered.
	MinOverlap int

	MaxShift float64
}

var _ syncer.Syncer = (*Syncer)(nil)

func NewSyncer() *Syncer {
	return &Syncer{
		MaxFrames:  DefaultMaxFrames,
		LagStep:    DefaultLagStep,
		MinOverlap: DefaultMinOverlap,
		MaxShift:   syncer.MaxShift,
	}
}

func (s *Syncer) Method() syncer.Method {
	return syncer.MethodMFCC
}

// CalculateShiftBetween returns the lag with the largest mean cosine
// similarity of the overlapping cepstral frames. A lag of one frame is
// exactly features.Config.MFCCFramePeriod.
func (s *Syncer) CalculateShiftBetween(
	ctx context.Context,
	reference *syncer.Input,
	comparison *syncer.Input,
) ([]syncer.ShiftResult, error) {
	refFS, compFS, err := syncer.FeaturesOf(reference, comparison)
	if err != nil {
		return nil, err
	}
	period, err := framePeriod(refFS, compFS)
	if err != nil {
		return nil, err
	}
	if s.LagStep <= 0 {
		return nil, fmt.Errorf("the lag step must be positive: got %d", s.LagStep)
	}

	ref := normalized(limit(refFS.MFCCFrames, s.MaxFrames))
	comp := normalized(limit(compFS.MFCCFrames, s.MaxFrames))
	if len(ref) < s.MinOverlap || len(comp) < s.MinOverlap {
		logger.Debugf(ctx, "not enough cepstral frames: %d and %d", len(ref), len(comp))
		return nil, nil
	}

	maxLag := int(math.Floor(s.MaxShift/period + 1e-9))
	bestLag, bestScore := 0, math.Inf(-1)
	// lags are visited by increasing absolute value, so the
	// smallest one wins a tie (up to rounding noise)
	for absLag := 0; absLag <= maxLag; absLag += s.LagStep {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lags := []int{absLag}
		if absLag != 0 {
			lags = append(lags, -absLag)
		}
		for _, lag := range lags {
			score, ok := s.meanSimilarity(ref, comp, lag)
			if !ok {
				continue
			}
			if score > bestScore+tieTolerance {
				bestLag, bestScore = lag, score
			}
		}
	}
	if math.IsInf(bestScore, -1) {
		return nil, nil
	}

	return []syncer.ShiftResult{{
		Shift:      float64(bestLag) * period,
		Confidence: bestScore,
		Method:     syncer.MethodMFCC,
	}}, nil
}

// meanSimilarity pairs ref[i] with comp[i+lag].
func (s *Syncer) meanSimilarity(ref, comp [][]float64, lag int) (float64, bool) {
	var sum float64
	count := 0
	for i := range ref {
		j := i + lag
		if j < 0 {
			continue
		}
		if j >= len(comp) {
			break
		}
		if ref[i] == nil || comp[j] == nil {
			continue
		}
		sum += floats.Dot(ref[i], comp[j])
		count++
	}
	if count < s.MinOverlap {
		return 0, false
	}
	return sum / float64(count), true
}

func framePeriod(a, b *features.FeatureSet) (float64, error) {
	pa := a.MFCCFramePeriod()
	pb := b.MFCCFramePeriod()
	if pa <= 0 || pb <= 0 {
		return 0, fmt.Errorf("unable to determine the cepstral frame period")
	}
	if math.Abs(pa-pb) > 1e-9 {
		return 0, fmt.Errorf("the cepstral frame periods are different: %v != %v", pa, pb)
	}
	return pa, nil
}

func limit(frames [][]float64, max int) [][]float64 {
	if max > 0 && len(frames) > max {
		return frames[:max]
	}
	return frames
}

// normalized returns unit-length copies of the vectors, so that a dot
// product is a cosine similarity. Zero vectors become nil.
func normalized(frames [][]float64) [][]float64 {
	out := make([][]float64, len(frames))
	for i, v := range frames {
		norm := floats.Norm(v, 2)
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			continue
		}
		out[i] = make([]float64, len(v))
		floats.ScaleTo(out[i], 1/norm, v)
	}
	return out
}
