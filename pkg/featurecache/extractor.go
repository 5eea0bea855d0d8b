package featurecache

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/features"
)

// Extractor is a features.Extractor which consults the Cache first.
// Cache failures are logged and otherwise ignored.
type Extractor struct {
	*features.Extractor
	Cache *Cache
}

func NewExtractor(e *features.Extractor, cache *Cache) *Extractor {
	return &Extractor{
		Extractor: e,
		Cache:     cache,
	}
}

func (e *Extractor) Extract(
	ctx context.Context,
	samples []float32,
	sampleRate int,
) (*features.FeatureSet, error) {
	if e.Cache == nil {
		return e.Extractor.Extract(ctx, samples, sampleRate)
	}

	key := KeyFor(samples, sampleRate, e.Extractor.Config)
	fs, err := e.Cache.Get(ctx, key)
	if err != nil {
		logger.Warnf(ctx, "unable to read the feature cache: %v", err)
	}
	if fs != nil {
		logger.Debugf(ctx, "features %s are taken from the cache", key)
		return fs, nil
	}

	fs, err = e.Extractor.Extract(ctx, samples, sampleRate)
	if err != nil {
		return nil, err
	}
	if err := e.Cache.Put(ctx, key, fs); err != nil {
		logger.Warnf(ctx, "unable to write to the feature cache: %v", err)
	}
	return fs, nil
}
