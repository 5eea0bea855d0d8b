// Package engine runs the whole pipeline for a pair of tracks: decoding,
// feature extraction, correlation, ranking of the suggestions and the
// synchronized playback with the accepted offset.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/avsync/pkg/audio"
	"github.com/xaionaro-go/avsync/pkg/decoder"
	"github.com/xaionaro-go/avsync/pkg/featurecache"
	"github.com/xaionaro-go/avsync/pkg/features"
	"github.com/xaionaro-go/avsync/pkg/playback"
	"github.com/xaionaro-go/avsync/pkg/suggest"
	"github.com/xaionaro-go/avsync/pkg/syncer"
	"github.com/xaionaro-go/avsync/pkg/syncer/implementations/basic"
	"github.com/xaionaro-go/avsync/pkg/syncer/implementations/gccphat"
	"github.com/xaionaro-go/avsync/pkg/syncer/implementations/mfcc"
	"github.com/xaionaro-go/avsync/pkg/syncer/implementations/onset"
	"github.com/xaionaro-go/avsync/pkg/track"

	_ "github.com/xaionaro-go/avsync/pkg/decoder/formats/all"
)

// Analysis is the result of analyzing a pair of tracks.
type Analysis struct {
	ID uuid.UUID

	Primary           *track.AudioTrack
	Secondary         *track.AudioTrack
	PrimaryFeatures   *features.FeatureSet
	SecondaryFeatures *features.FeatureSet

	Candidates  []syncer.ShiftResult
	Suggestions suggest.Suggestions

	// AcceptedOffset is the selected suggestion, applied right away.
	AcceptedOffset float64

	// Warnings are the problems which degraded the analysis without
	// failing it: decoding failures (replaced by synthetic tracks),
	// extraction failures and failed correlation methods.
	Warnings []error

	Took time.Duration
}

// Engine owns everything related to a single pair of tracks. Analyzing
// a new pair replaces the previous one wholesale.
type Engine struct {
	config Config

	analysisLocker sync.Mutex

	locker      sync.Mutex
	closed      bool
	decoderCtx  *decoder.Context
	extractor   FeatureExtractor
	cache       *featurecache.Cache
	syncer      syncer.Syncer
	player      audio.PlayerPCM
	ownPlayer   bool
	analysis    *Analysis
	offset      float64
	mode        playback.Mode
	controller  *playback.Controller
	subscribers []func(playback.State)
}

func New(
	cfg Config,
	opts ...Option,
) (*Engine, error) {
	e := &Engine{
		config: cfg,
	}
	Options(opts).apply(e)

	if e.extractor == nil {
		extractor, err := features.NewExtractor(cfg.Features)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the feature extractor: %w", err)
		}
		e.extractor = extractor
		if cfg.CacheDir != "" || cfg.InMemoryCache {
			cache, err := featurecache.Open(cfg.CacheDir)
			if err != nil {
				return nil, fmt.Errorf("unable to open the feature cache: %w", err)
			}
			e.cache = cache
			e.extractor = featurecache.NewExtractor(extractor, cache)
		}
	}

	if e.syncer == nil {
		methods := syncer.Multi{
			basic.NewSyncer(),
			mfcc.NewSyncer(),
			onset.NewSyncer(),
		}
		if cfg.EnableGCCPHAT {
			methods = append(methods, gccphat.NewSyncer())
		}
		e.syncer = methods
	}
	return e, nil
}

// decoderContext returns the shared decoding context, creating it on
// the first use.
func (e *Engine) decoderContext() (*decoder.Context, error) {
	e.locker.Lock()
	defer e.locker.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.decoderCtx == nil {
		c, err := decoder.NewContext(e.config.Decoder)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the decoding context: %w", err)
		}
		e.decoderCtx = c
	}
	return e.decoderCtx, nil
}

// Analyze decodes both tracks and analyzes them. It fails only if the
// engine is closed, busy, or the context is cancelled: undecodable
// tracks are replaced by synthetic ones and reported in the warnings.
func (e *Engine) Analyze(
	ctx context.Context,
	primaryLocator string,
	secondaryLocator string,
) (_ret *Analysis, _err error) {
	logger.Debugf(ctx, "Analyze(%s, %s)", primaryLocator, secondaryLocator)
	defer func() { logger.Debugf(ctx, "/Analyze(%s, %s): %v", primaryLocator, secondaryLocator, _err) }()

	if !e.analysisLocker.TryLock() {
		return nil, ErrAnalysisInProgress
	}
	defer e.analysisLocker.Unlock()

	decoderCtx, err := e.decoderContext()
	if err != nil {
		return nil, err
	}

	var warnings []error
	decode := func(locator string) (*track.AudioTrack, error) {
		t, err := decoderCtx.DecodeWithRetries(ctx, locator)
		if err == nil {
			return t, nil
		}
		var decodeErr decoder.DecodeError
		if errors.As(err, &decodeErr) && t != nil {
			logger.Warnf(ctx, "using a synthetic track instead of '%s': %v", locator, err)
			warnings = append(warnings, err)
			return t, nil
		}
		return nil, err
	}

	primary, err := decode(primaryLocator)
	if err != nil {
		return nil, fmt.Errorf("unable to decode the primary track: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secondary, err := decode(secondaryLocator)
	if err != nil {
		return nil, fmt.Errorf("unable to decode the secondary track: %w", err)
	}

	return e.analyzeTracks(ctx, primary, secondary, warnings)
}

// AnalyzeTracks analyzes already decoded tracks.
func (e *Engine) AnalyzeTracks(
	ctx context.Context,
	primary *track.AudioTrack,
	secondary *track.AudioTrack,
) (*Analysis, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("both tracks are required")
	}
	if !e.analysisLocker.TryLock() {
		return nil, ErrAnalysisInProgress
	}
	defer e.analysisLocker.Unlock()
	if e.isClosed() {
		return nil, ErrClosed
	}
	return e.analyzeTracks(ctx, primary, secondary, nil)
}

func (e *Engine) isClosed() bool {
	e.locker.Lock()
	defer e.locker.Unlock()
	return e.closed
}

func (e *Engine) analyzeTracks(
	ctx context.Context,
	primary *track.AudioTrack,
	secondary *track.AudioTrack,
	warnings []error,
) (*Analysis, error) {
	startedAt := time.Now()
	analysis := &Analysis{
		ID:        uuid.New(),
		Primary:   primary,
		Secondary: secondary,
		Warnings:  warnings,
	}
	ctx = logger.CtxWithLogger(ctx, logger.FromCtx(ctx).WithField("analysis_id", analysis.ID.String()))

	var err error
	analysis.PrimaryFeatures, err = e.extractFeatures(ctx, primary, analysis)
	if err != nil {
		return nil, err
	}
	analysis.SecondaryFeatures, err = e.extractFeatures(ctx, secondary, analysis)
	if err != nil {
		return nil, err
	}

	candidates, err := e.syncer.CalculateShiftBetween(
		ctx,
		&syncer.Input{Track: primary, Features: analysis.PrimaryFeatures},
		&syncer.Input{Track: secondary, Features: analysis.SecondaryFeatures},
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var mErr *multierror.Error
		if errors.As(err, &mErr) {
			analysis.Warnings = append(analysis.Warnings, mErr.Errors...)
		} else {
			analysis.Warnings = append(analysis.Warnings, err)
		}
	}
	analysis.Candidates = candidates
	analysis.Suggestions = suggest.Aggregate(candidates, e.config.Suggest)
	analysis.AcceptedOffset = analysis.Suggestions.SelectedOffset()
	analysis.Took = time.Since(startedAt)
	logger.Infof(ctx, "suggestions: %v; accepted offset: %+.1fs; took %v",
		analysis.Suggestions.Offsets, analysis.AcceptedOffset, analysis.Took)

	e.replaceAnalysis(ctx, analysis)
	return analysis, nil
}

func (e *Engine) extractFeatures(
	ctx context.Context,
	t *track.AudioTrack,
	analysis *Analysis,
) (*features.FeatureSet, error) {
	attempts := 1 + e.config.ExtractionRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fs, err := e.extractor.Extract(ctx, t.Samples, t.SampleRate)
		if err == nil {
			if t.Synthetic {
				fs.Synthetic = true
			}
			return fs, nil
		}
		lastErr = err
		logger.Warnf(ctx, "attempt %d/%d to extract the features of '%s' failed: %v", attempt, attempts, t.Locator, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis.Warnings = append(analysis.Warnings, fmt.Errorf("unable to extract the features of '%s', using placeholder ones: %w", t.Locator, lastErr))
	return features.Placeholder(ctx, t.SampleRate), nil
}

// replaceAnalysis installs the new tracks and tears down the playback
// of the previous ones.
func (e *Engine) replaceAnalysis(ctx context.Context, analysis *Analysis) {
	e.locker.Lock()
	controller := e.controller
	e.controller = nil
	e.analysis = analysis
	e.offset = analysis.AcceptedOffset
	e.locker.Unlock()

	if err := e.closeController(ctx, controller); err != nil {
		logger.Warnf(ctx, "unable to close the previous playback: %v", err)
	}
}

// closeController closes the controller and tells the subscribers if a
// session was interrupted, since Controller.Close is silent.
func (e *Engine) closeController(ctx context.Context, controller *playback.Controller) error {
	if controller == nil {
		return nil
	}
	wasActive := controller.State().Phase != playback.PhaseIdle
	err := controller.Close(ctx)
	if wasActive {
		e.notifyAll(controller.State())
	}
	return err
}

// Analysis returns the latest analysis, or nil.
func (e *Engine) Analysis() *Analysis {
	e.locker.Lock()
	defer e.locker.Unlock()
	return e.analysis
}

func (e *Engine) AcceptedOffset() float64 {
	e.locker.Lock()
	defer e.locker.Unlock()
	return e.offset
}

// SetOffset accepts a user-provided offset (clamped to ±5 seconds at 0.1
// second precision). A running playback is stopped.
func (e *Engine) SetOffset(ctx context.Context, offset float64) float64 {
	offset = suggest.ClampOffset(offset)
	e.locker.Lock()
	e.offset = offset
	controller := e.controller
	e.locker.Unlock()

	if controller != nil {
		controller.SetOffset(ctx, offset)
	}
	return offset
}

// Subscribe registers a callback for the playback state changes. It
// survives the replacement of the tracks.
func (e *Engine) Subscribe(fn func(playback.State)) {
	e.locker.Lock()
	defer e.locker.Unlock()
	e.subscribers = append(e.subscribers, fn)
	if e.controller != nil {
		e.controller.Subscribe(fn)
	}
}

func (e *Engine) notifyAll(state playback.State) {
	e.locker.Lock()
	subscribers := e.subscribers
	e.locker.Unlock()
	for _, fn := range subscribers {
		fn(state)
	}
}

func (e *Engine) getController(ctx context.Context) (*playback.Controller, error) {
	e.locker.Lock()
	defer e.locker.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.analysis == nil {
		return nil, ErrNoAnalysis
	}
	if e.controller != nil {
		return e.controller, nil
	}

	if e.player == nil {
		e.player = audio.NewPlayerAuto(ctx).PlayerPCM
		e.ownPlayer = true
	}
	controller := playback.NewController(
		playback.NewPCMSource(e.analysis.Primary, e.player),
		playback.NewPCMSource(e.analysis.Secondary, e.player),
		e.config.Playback,
	)
	for _, fn := range e.subscribers {
		controller.Subscribe(fn)
	}
	controller.OnError(func(err error) {
		logger.Errorf(ctx, "playback failed: %v", err)
	})
	e.controller = controller
	return controller, nil
}

// Play starts the synchronized playback of the analyzed tracks with the
// accepted offset.
func (e *Engine) Play(ctx context.Context, mode playback.Mode) (_err error) {
	logger.Debugf(ctx, "Play(%s)", mode)
	defer func() { logger.Debugf(ctx, "/Play(%s): %v", mode, _err) }()

	controller, err := e.getController(ctx)
	if err != nil {
		return err
	}
	e.locker.Lock()
	e.mode = mode
	offset := e.offset
	e.locker.Unlock()
	return controller.Start(ctx, mode, offset)
}

// SetMode changes the playback mode. A running playback is stopped.
func (e *Engine) SetMode(ctx context.Context, mode playback.Mode) {
	e.locker.Lock()
	e.mode = mode
	controller := e.controller
	e.locker.Unlock()
	if controller != nil {
		controller.SetMode(ctx, mode)
	}
}

func (e *Engine) Stop(ctx context.Context) {
	e.locker.Lock()
	controller := e.controller
	e.locker.Unlock()
	if controller != nil {
		controller.Stop(ctx)
	}
}

// PlaybackState returns the state of the playback; it is idle if
// nothing was played yet.
func (e *Engine) PlaybackState() playback.State {
	e.locker.Lock()
	controller := e.controller
	mode := e.mode
	offset := e.offset
	e.locker.Unlock()
	if controller == nil {
		return playback.State{
			Phase:  playback.PhaseIdle,
			Mode:   mode,
			Offset: offset,
		}
	}
	return controller.State()
}

// Close releases everything the engine owns. The engine is unusable
// afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.locker.Lock()
	if e.closed {
		e.locker.Unlock()
		return nil
	}
	e.closed = true
	controller := e.controller
	e.controller = nil
	decoderCtx := e.decoderCtx
	cache := e.cache
	var player audio.PlayerPCM
	if e.ownPlayer {
		player = e.player
	}
	e.locker.Unlock()

	var mErr *multierror.Error
	if err := e.closeController(ctx, controller); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the playback: %w", err))
	}
	if decoderCtx != nil {
		if err := decoderCtx.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the decoding context: %w", err))
		}
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the feature cache: %w", err))
		}
	}
	if player != nil {
		if err := player.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the player: %w", err))
		}
	}
	return mErr.ErrorOrNil()
}
