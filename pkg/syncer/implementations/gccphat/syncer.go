// Package gccphat implements an audio synchronization algorithm using
// Generalized Cross-Correlation with Phase Transform (GCC-PHAT).
//
// The algorithm calculates the time delay between two signals by
// looking at their cross-correlation in the frequency domain. By
// normalizing the magnitude (the Phase Transform), it becomes
// robust against variations in volume and certain types of noise,
// focusing only on the phase information that indicates the delay.
package gccphat

import (
	"context"
	"fmt"

	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/avsync/pkg/syncer"
)

const (
	DefaultWindow  = 10.0
	DefaultMinFreq = 100
	DefaultMaxFreq = 12000
)

type Syncer struct {
	// Window is the amount of seconds of each track to correlate.
	Window   float64
	MinFreq  float64
	MaxFreq  float64
	MaxShift float64
}

var _ syncer.Syncer = (*Syncer)(nil)

// NewSyncer initializes a new one-shot GCC-PHAT syncer.
func NewSyncer() *Syncer {
	return &Syncer{
		Window: DefaultWindow,
		// 100Hz to 12000Hz captures most informative audio while filtering
		// out low-frequency rumble and high-frequency digital noise.
		MinFreq:  DefaultMinFreq,
		MaxFreq:  DefaultMaxFreq,
		MaxShift: syncer.MaxShift,
	}
}

func (s *Syncer) Method() syncer.Method {
	return syncer.MethodGCCPHAT
}

func (s *Syncer) CalculateShiftBetween(
	ctx context.Context,
	reference *syncer.Input,
	comparison *syncer.Input,
) ([]syncer.ShiftResult, error) {
	refSamples, compSamples, sampleRate, err := syncer.SamplesOf(reference, comparison)
	if err != nil {
		return nil, err
	}

	limit := len(refSamples)
	if s.Window > 0 {
		limit = int(s.Window * float64(sampleRate))
	}
	n1 := min(len(refSamples), limit)
	n2 := min(len(compSamples), limit)
	if n1 == 0 || n2 == 0 {
		return nil, fmt.Errorf("one of the tracks is empty")
	}

	// the next power of two of (n1 + n2 - 1) to avoid circular
	// convolution artifacts
	n := 1
	for n < n1+n2-1 {
		n <<= 1
	}

	fref := make([]complex128, n)
	fcomp := make([]complex128, n)
	for j := 0; j < n1; j++ {
		fref[j] = complex(float64(refSamples[j]), 0)
	}
	for j := 0; j < n2; j++ {
		fcomp[j] = complex(float64(compSamples[j]), 0)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ffref := fft.FFT(fref)
	ffcomp := fft.FFT(fcomp)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxLag := int(s.MaxShift * float64(sampleRate))
	lag, confidence, err := CrossCorrelate(ffref, ffcomp, float64(sampleRate), s.MinFreq, s.MaxFreq, maxLag)
	if err != nil {
		return nil, fmt.Errorf("unable to cross-correlate: %w", err)
	}
	if confidence == 0 {
		return nil, nil
	}

	return []syncer.ShiftResult{{
		Shift:      lag / float64(sampleRate),
		Confidence: confidence,
		Method:     syncer.MethodGCCPHAT,
	}}, nil
}
