// Package basic implements the plain time-domain cross-correlation of the
// raw samples at a coarse (0.1 second) step.
package basic

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/syncer"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultWindow = 10.0
	DefaultStep   = 0.1
)

type Syncer struct {
	// Window is the amount of seconds of each track to correlate.
	Window float64

	// Step is the offset increment in seconds.
	Step float64

	// MaxShift is the largest offset searched for, in both directions.
	MaxShift float64
}

var _ syncer.Syncer = (*Syncer)(nil)

func NewSyncer() *Syncer {
	return &Syncer{
		Window:   DefaultWindow,
		Step:     DefaultStep,
		MaxShift: syncer.MaxShift,
	}
}

func (s *Syncer) Method() syncer.Method {
	return syncer.MethodBasicCorrelation
}

// CalculateShiftBetween returns the single offset with the largest mean
// pointwise product of the overlapping samples. The confidence is that
// mean product: it is not normalized by the signal energy, so it is
// neither bounded nor comparable across track pairs.
func (s *Syncer) CalculateShiftBetween(
	ctx context.Context,
	reference *syncer.Input,
	comparison *syncer.Input,
) ([]syncer.ShiftResult, error) {
	refSamples, compSamples, sampleRate, err := syncer.SamplesOf(reference, comparison)
	if err != nil {
		return nil, err
	}
	if s.Step <= 0 {
		return nil, fmt.Errorf("the step must be positive: got %v", s.Step)
	}

	limit := int(s.Window * float64(sampleRate))
	ref := toFloat64(refSamples, limit)
	comp := toFloat64(compSamples, limit)
	if len(ref) == 0 || len(comp) == 0 {
		return nil, fmt.Errorf("one of the tracks is empty")
	}

	steps := int(math.Round(s.MaxShift / s.Step))
	bestShift, bestScore := 0.0, math.Inf(-1)
	for i := -steps; i <= steps; i++ {
		if i%10 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		shift := float64(i) * s.Step
		score, ok := MeanProduct(ref, comp, int(math.Round(shift*float64(sampleRate))))
		if !ok {
			continue
		}
		if score > bestScore {
			bestShift, bestScore = shift, score
		}
	}
	if math.IsInf(bestScore, -1) {
		return nil, nil
	}

	logger.Tracef(ctx, "basic correlation: best shift %v with score %v", bestShift, bestScore)
	return []syncer.ShiftResult{{
		Shift:      math.Round(bestShift*10) / 10,
		Confidence: bestScore,
		Method:     syncer.MethodBasicCorrelation,
	}}, nil
}

// MeanProduct returns the mean of ref[t]*comp[t+lag] over the overlap of
// both slices. It returns false if they do not overlap.
func MeanProduct(ref, comp []float64, lag int) (float64, bool) {
	var a, b []float64
	if lag >= 0 {
		if lag >= len(comp) {
			return 0, false
		}
		a, b = ref, comp[lag:]
	} else {
		if -lag >= len(ref) {
			return 0, false
		}
		a, b = ref[-lag:], comp
	}
	n := min(len(a), len(b))
	if n == 0 {
		return 0, false
	}
	return floats.Dot(a[:n], b[:n]) / float64(n), true
}

func toFloat64(samples []float32, limit int) []float64 {
	if len(samples) > limit {
		samples = samples[:limit]
	}
	out := make([]float64, len(samples))
	for i, v := range samples {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		out[i] = f
	}
	return out
}
