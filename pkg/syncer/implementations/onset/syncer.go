// Package onset aligns the rhythm of the tracks: it matches the intervals
// between consecutive energy onsets.
package onset

import (
	"context"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/syncer"
)

const (
	DefaultTolerance = 0.1

	matchConfidence    = 0.7
	matchStrength      = 1.0
	fallbackConfidence = 0.5
)

type Syncer struct {
	// Tolerance is the largest difference (in seconds) between two
	// intervals still considered equal.
	Tolerance float64

	MaxShift float64
}

var _ syncer.Syncer = (*Syncer)(nil)

func NewSyncer() *Syncer {
	return &Syncer{
		Tolerance: DefaultTolerance,
		MaxShift:  syncer.MaxShift,
	}
}

func (s *Syncer) Method() syncer.Method {
	return syncer.MethodOnset
}

// CalculateShiftBetween returns a candidate per pair of onset triples
// with matching inter-onset intervals. If nothing matches, the first
// onsets of the tracks are aligned instead.
func (s *Syncer) CalculateShiftBetween(
	ctx context.Context,
	reference *syncer.Input,
	comparison *syncer.Input,
) ([]syncer.ShiftResult, error) {
	refFS, compFS, err := syncer.FeaturesOf(reference, comparison)
	if err != nil {
		return nil, err
	}
	a, b := refFS.Onsets, compFS.Onsets

	var result []syncer.ShiftResult
	matches := 0
	for i := 0; i+2 < len(a); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a1, a2 := a[i+1]-a[i], a[i+2]-a[i+1]
		for j := 0; j+2 < len(b); j++ {
			b1, b2 := b[j+1]-b[j], b[j+2]-b[j+1]
			if math.Abs(a1-b1) >= s.Tolerance || math.Abs(a2-b2) >= s.Tolerance {
				continue
			}
			matches++
			result = s.appendInRange(result, b[j]-a[i], matchConfidence+(1-matchConfidence)*matchStrength)
		}
	}

	if matches == 0 && len(a) > 0 && len(b) > 0 {
		logger.Debugf(ctx, "no onset patterns matched, aligning the first onsets")
		result = s.appendInRange(result, b[0]-a[0], fallbackConfidence)
	}
	return result, nil
}

func (s *Syncer) appendInRange(result []syncer.ShiftResult, shift, confidence float64) []syncer.ShiftResult {
	if math.Abs(shift) > s.MaxShift {
		return result
	}
	return append(result, syncer.ShiftResult{
		Shift:      shift,
		Confidence: confidence,
		Method:     syncer.MethodOnset,
	})
}
