package features

import (
	"fmt"
	"time"
)

type Config struct {
	// FrameSize is the amount of samples analyzed per frame (a power of two).
	FrameSize int
	// HopSize is the distance between frame starts. It is larger than
	// FrameSize, so the frames do not overlap and part of the signal is
	// never looked at: it trades precision for speed.
	HopSize int
	// MaxDuration caps the analyzed prefix of a track.
	MaxDuration time.Duration

	// MFCCStride keeps the cepstral coefficients of every MFCCStride-th frame only.
	MFCCStride    int
	NumMFCC       int
	NumMelFilters int
	MinMelFreq    float64

	// A frame is an onset if its RMS exceeds OnsetThreshold and
	// OnsetRatio times the RMS of the previous frame.
	OnsetThreshold float64
	OnsetRatio     float64
}

func DefaultConfig() Config {
	return Config{
		FrameSize:      2048,
		HopSize:        4096,
		MaxDuration:    30 * time.Second,
		MFCCStride:     3,
		NumMFCC:        13,
		NumMelFilters:  26,
		MinMelFreq:     20,
		OnsetThreshold: 0.1,
		OnsetRatio:     1.5,
	}
}

func (cfg Config) Validate() error {
	if cfg.FrameSize <= 0 || cfg.FrameSize&(cfg.FrameSize-1) != 0 {
		return fmt.Errorf("frame size must be a positive power of two: got %d", cfg.FrameSize)
	}
	if cfg.HopSize <= 0 {
		return fmt.Errorf("hop size must be positive: got %d", cfg.HopSize)
	}
	if cfg.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be positive: got %v", cfg.MaxDuration)
	}
	if cfg.MFCCStride <= 0 {
		return fmt.Errorf("MFCC stride must be positive: got %d", cfg.MFCCStride)
	}
	if cfg.NumMFCC <= 0 || cfg.NumMelFilters < cfg.NumMFCC {
		return fmt.Errorf("invalid MFCC geometry: %d coefficients from %d filters", cfg.NumMFCC, cfg.NumMelFilters)
	}
	return nil
}

// MFCCFramePeriod is the time distance (in seconds) between two
// consecutive stored cepstral frames.
func (cfg Config) MFCCFramePeriod(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(cfg.HopSize*cfg.MFCCStride) / float64(sampleRate)
}
