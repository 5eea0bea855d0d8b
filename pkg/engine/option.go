package engine

import (
	"context"

	"github.com/xaionaro-go/avsync/pkg/audio"
	"github.com/xaionaro-go/avsync/pkg/features"
	"github.com/xaionaro-go/avsync/pkg/syncer"
)

type FeatureExtractor interface {
	Extract(ctx context.Context, samples []float32, sampleRate int) (*features.FeatureSet, error)
}

type Option interface {
	apply(*Engine)
}

type Options []Option

func (s Options) apply(e *Engine) {
	for _, opt := range s {
		opt.apply(e)
	}
}

// OptionPlayer sets the PCM player used for the playback. By default the
// first working backend is picked on the first playback.
type OptionPlayer struct {
	Player audio.PlayerPCM
}

func (opt OptionPlayer) apply(e *Engine) {
	e.player = opt.Player
}

// OptionFeatureExtractor replaces the feature extractor (and disables
// the feature cache).
type OptionFeatureExtractor struct {
	Extractor FeatureExtractor
}

func (opt OptionFeatureExtractor) apply(e *Engine) {
	e.extractor = opt.Extractor
}

// OptionSyncers replaces the set of correlation methods.
type OptionSyncers []syncer.Syncer

func (opt OptionSyncers) apply(e *Engine) {
	e.syncer = syncer.Multi(opt)
}
