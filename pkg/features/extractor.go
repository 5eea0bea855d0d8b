// Package features computes the per-frame spectral, energy, onset and
// cepstral description of a track used by the correlation methods.
package features

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/brettbuddin/fourier"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/window"
	"github.com/xaionaro-go/avsync/pkg/track"
)

type Extractor struct {
	Config Config

	locker     sync.Mutex
	window     []float64
	filterbank map[int][][]float64
}

func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Extractor{
		Config:     cfg,
		window:     window.Hann(cfg.FrameSize),
		filterbank: map[int][][]float64{},
	}, nil
}

func (e *Extractor) melFilterbank(sampleRate int) [][]float64 {
	e.locker.Lock()
	defer e.locker.Unlock()
	fb, ok := e.filterbank[sampleRate]
	if !ok {
		fb = newMelFilterbank(e.Config.NumMelFilters, e.Config.FrameSize, sampleRate, e.Config.MinMelFreq)
		e.filterbank[sampleRate] = fb
	}
	return fb
}

type frameFeatures struct {
	Start    int
	Centroid float64
	RMS      float64
	MFCC     []float64
}

// Extract analyzes the first Config.MaxDuration of the samples.
//
// The result depends only on the input. Frames which cannot be analyzed
// are skipped in every per-frame slice.
func (e *Extractor) Extract(
	ctx context.Context,
	samples []float32,
	sampleRate int,
) (_ret *FeatureSet, _err error) {
	logger.Tracef(ctx, "Extract(%d samples, %d Hz)", len(samples), sampleRate)
	defer func() { logger.Tracef(ctx, "/Extract(%d samples, %d Hz): %v", len(samples), sampleRate, _err) }()

	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	cfg := e.Config
	maxSamples := int(cfg.MaxDuration.Seconds() * float64(sampleRate))
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}

	filters := e.melFilterbank(sampleRate)
	fs := &FeatureSet{
		SampleRate: sampleRate,
		Config:     cfg,
	}

	frameIdx := 0
	for start := 0; start+cfg.FrameSize <= len(samples); start += cfg.HopSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wantMFCC := frameIdx%cfg.MFCCStride == 0
		frame, err := e.analyzeFrame(samples[start:start+cfg.FrameSize], sampleRate, filters, wantMFCC)
		if err != nil {
			err = FeatureExtractionError{Frame: frameIdx, StartSample: start, Err: err}
			logger.Debugf(ctx, "skipping a frame: %v", err)
			fs.SkippedFrames++
			frameIdx++
			continue
		}
		frame.Start = start
		fs.append(frame)
		frameIdx++
	}

	fs.detectOnsets(cfg.OnsetThreshold, cfg.OnsetRatio)
	logger.Debugf(ctx, "extracted %d frames (%d skipped), %d onsets, %d MFCC frames",
		fs.NumFrames(), fs.SkippedFrames, len(fs.Onsets), len(fs.MFCCFrames))
	return fs, nil
}

func (fs *FeatureSet) append(frame *frameFeatures) {
	fs.FrameStarts = append(fs.FrameStarts, frame.Start)
	fs.SpectralCentroids = append(fs.SpectralCentroids, frame.Centroid)
	fs.RMS = append(fs.RMS, frame.RMS)
	if frame.MFCC != nil {
		fs.MFCCFrames = append(fs.MFCCFrames, frame.MFCC)
	}
}

func (fs *FeatureSet) detectOnsets(threshold, ratio float64) {
	fs.Onsets = fs.Onsets[:0]
	for i := 1; i < len(fs.RMS); i++ {
		if fs.RMS[i] > threshold && fs.RMS[i] > ratio*fs.RMS[i-1] {
			fs.Onsets = append(fs.Onsets, float64(fs.FrameStarts[i])/float64(fs.SampleRate))
		}
	}
}

func (e *Extractor) analyzeFrame(
	samples []float32,
	sampleRate int,
	filters [][]float64,
	wantMFCC bool,
) (_ret *frameFeatures, _err error) {
	defer func() {
		if r := recover(); r != nil {
			_ret, _err = nil, fmt.Errorf("got panic: %v", r)
		}
	}()

	n := len(samples)
	var sumSquares float64
	buf := make([]complex128, n)
	for i, v := range samples {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ErrNonFiniteSample
		}
		sumSquares += f * f
		buf[i] = complex(f*e.window[i], 0)
	}

	if err := fourier.Forward(buf); err != nil {
		return nil, fmt.Errorf("unable to compute the FFT: %w", err)
	}

	spectrum := make([]float64, n/2)
	var weighted, total float64
	binWidth := float64(sampleRate) / float64(n)
	for i := range spectrum {
		m := cmplx.Abs(buf[i])
		spectrum[i] = m
		weighted += float64(i) * binWidth * m
		total += m
	}

	frame := &frameFeatures{
		RMS: math.Sqrt(sumSquares / float64(n)),
	}
	if total > 0 {
		frame.Centroid = weighted / total
	}
	if wantMFCC {
		frame.MFCC = mfcc(spectrum, filters, e.Config.NumMFCC)
	}
	return frame, nil
}

// Placeholder returns the features of the synthetic placeholder track.
// It is used when the extraction of a real track keeps failing.
func Placeholder(ctx context.Context, sampleRate int) *FeatureSet {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	e, err := NewExtractor(DefaultConfig())
	if err != nil {
		panic(err)
	}
	fs, err := e.Extract(ctx, track.SyntheticSamples(sampleRate), sampleRate)
	if err != nil {
		// only a cancelled context may get here
		fs = &FeatureSet{SampleRate: sampleRate, Config: e.Config}
	}
	fs.Synthetic = true
	return fs
}
