// Package suggest ranks the candidates of the correlation methods into a
// short list of offsets to offer.
package suggest

import (
	"math"
	"sort"

	"github.com/xaionaro-go/avsync/pkg/syncer"
)

const (
	// stepsPerSecond is the amount of suggestion steps in a second.
	stepsPerSecond = 10

	// Precision is the granularity of every suggested offset.
	Precision = 1.0 / stepsPerSecond

	// FineAdjustment is added to and subtracted from the best candidate.
	FineAdjustment = 0.05

	DefaultTopCount = 3
	DefaultMaxShift = syncer.MaxShift
)

type SelectionPolicy int

const (
	// SelectBest selects the suggestion equal to the best weighted candidate.
	SelectBest = SelectionPolicy(iota)

	// SelectFirst selects the first suggestion, which is the one with
	// the smallest absolute value (usually 0).
	SelectFirst
)

func (p SelectionPolicy) String() string {
	switch p {
	case SelectBest:
		return "best"
	case SelectFirst:
		return "first"
	default:
		return "unknown"
	}
}

type Options struct {
	Weights         map[syncer.Method]float64
	DefaultWeight   float64
	TopCount        int
	MaxShift        float64
	SelectionPolicy SelectionPolicy
}

func DefaultWeights() map[syncer.Method]float64 {
	return map[syncer.Method]float64{
		syncer.MethodMFCC:             0.5,
		syncer.MethodOnset:            0.3,
		syncer.MethodBasicCorrelation: 0.2,
	}
}

func DefaultOptions() Options {
	return Options{
		Weights:         DefaultWeights(),
		DefaultWeight:   0.1,
		TopCount:        DefaultTopCount,
		MaxShift:        DefaultMaxShift,
		SelectionPolicy: SelectBest,
	}
}

func (opts Options) weight(m syncer.Method) float64 {
	if w, ok := opts.Weights[m]; ok {
		return w
	}
	return opts.DefaultWeight
}

type Suggestions struct {
	// Offsets are distinct, rounded to Precision, within ±MaxShift, and
	// sorted by the absolute value. 0 is always present.
	Offsets []float64

	// Selected is the index of the offset to apply.
	Selected int

	// Best is the best weighted candidate, if there was any.
	Best *syncer.ShiftResult
}

// SelectedOffset returns the offset at Selected.
func (s Suggestions) SelectedOffset() float64 {
	if s.Selected < 0 || s.Selected >= len(s.Offsets) {
		return 0
	}
	return s.Offsets[s.Selected]
}

type weighted struct {
	syncer.ShiftResult
	Score float64
}

// Aggregate turns the candidates of all the methods into Suggestions.
// The input is not modified, and the same input always gives the same
// output.
func Aggregate(candidates []syncer.ShiftResult, opts Options) Suggestions {
	if opts.TopCount <= 0 {
		opts.TopCount = DefaultTopCount
	}
	if opts.MaxShift <= 0 {
		opts.MaxShift = DefaultMaxShift
	}

	scored := make([]weighted, 0, len(candidates))
	for _, c := range candidates {
		if math.IsNaN(c.Shift) || math.IsInf(c.Shift, 0) || math.IsNaN(c.Confidence) {
			continue
		}
		scored = append(scored, weighted{
			ShiftResult: c,
			Score:       c.Confidence * opts.weight(c.Method),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	var offsets []float64
	var best *syncer.ShiftResult
	if len(scored) > 0 {
		b := scored[0].ShiftResult
		best = &b

		var top []float64
		for _, c := range scored {
			if len(top) >= opts.TopCount {
				break
			}
			r := Round(c.Shift)
			if !contains(top, r) {
				top = append(top, r)
			}
		}
		offsets = append(offsets, top...)
		offsets = append(offsets, b.Shift+FineAdjustment, b.Shift-FineAdjustment)
	}
	offsets = append(offsets, 0)

	var result []float64
	for _, v := range offsets {
		r := Round(v)
		if math.Abs(r) > opts.MaxShift+1e-9 {
			continue
		}
		if contains(result, r) {
			continue
		}
		result = append(result, r)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return math.Abs(result[i]) < math.Abs(result[j])
	})

	s := Suggestions{
		Offsets: result,
		Best:    best,
	}
	if opts.SelectionPolicy == SelectBest && best != nil {
		if idx := indexOf(result, Round(best.Shift)); idx >= 0 {
			s.Selected = idx
		}
	}
	return s
}

// Round rounds the offset to Precision. It never returns a negative zero.
func Round(v float64) float64 {
	r := math.Round(v*stepsPerSecond) / stepsPerSecond
	if r == 0 {
		return 0
	}
	return r
}

// ClampOffset brings a user-provided offset into ±DefaultMaxShift at
// Precision.
func ClampOffset(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-DefaultMaxShift, math.Min(DefaultMaxShift, v))
	return Round(v)
}

func contains(s []float64, v float64) bool {
	return indexOf(s, v) >= 0
}

func indexOf(s []float64, v float64) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
