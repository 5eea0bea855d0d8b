package engine

import (
	"github.com/xaionaro-go/avsync/pkg/decoder"
	"github.com/xaionaro-go/avsync/pkg/features"
	"github.com/xaionaro-go/avsync/pkg/playback"
	"github.com/xaionaro-go/avsync/pkg/suggest"
)

type Config struct {
	Decoder  decoder.Config
	Features features.Config
	Suggest  suggest.Options
	Playback playback.Config

	// ExtractionRetries is the amount of extra attempts to extract the
	// features before falling back to the placeholder ones.
	ExtractionRetries int

	// EnableGCCPHAT enables the fourth, phase-based, correlation method.
	EnableGCCPHAT bool

	// CacheDir is the directory of the persistent feature cache. The
	// cache is disabled if it is empty and InMemoryCache is false.
	CacheDir      string
	InMemoryCache bool
}

func DefaultConfig() Config {
	return Config{
		Decoder:           decoder.DefaultConfig(),
		Features:          features.DefaultConfig(),
		Suggest:           suggest.DefaultOptions(),
		Playback:          playback.DefaultConfig(),
		ExtractionRetries: decoder.DefaultRetries,
		EnableGCCPHAT:     true,
	}
}
