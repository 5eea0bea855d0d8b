package engine_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avsync/internal/audiotest"
	"github.com/xaionaro-go/avsync/pkg/audio"
	"github.com/xaionaro-go/avsync/pkg/decoder"
	"github.com/xaionaro-go/avsync/pkg/engine"
	"github.com/xaionaro-go/avsync/pkg/features"
	"github.com/xaionaro-go/avsync/pkg/playback"
	"github.com/xaionaro-go/avsync/pkg/track"
)

// 12288 Hz gives exactly one stored cepstral frame per second.
const sampleRate = 12288

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	cfg := engine.DefaultConfig()
	cfg.Decoder.SampleRate = sampleRate
	cfg.Decoder.RetryDelay = 0
	e, err := engine.New(cfg, append([]engine.Option{engine.OptionPlayer{Player: audio.PlayerPCMDummy{}}}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func delayedPair(t *testing.T, k int) (*track.AudioTrack, *track.AudioTrack) {
	a := audiotest.Bursts(11, sampleRate, 25, 0.5)
	var primary, secondary []float32
	if k >= 0 {
		primary, secondary = a, audiotest.Delay(a, k*sampleRate)
	} else {
		primary, secondary = audiotest.Delay(a, -k*sampleRate), a
	}
	trA, err := track.New("a", primary, sampleRate, 0)
	require.NoError(t, err)
	trB, err := track.New("b", secondary, sampleRate, 0)
	require.NoError(t, err)
	return trA, trB
}

func TestEngine_AnalyzeTracks(t *testing.T) {
	ctx := context.Background()
	for _, k := range []int{-5, -2, 0, 1, 3, 5} {
		t.Run(fmt.Sprintf("delay_%d", k), func(t *testing.T) {
			e := newEngine(t)
			a, b := delayedPair(t, k)

			analysis, err := e.AnalyzeTracks(ctx, a, b)
			require.NoError(t, err)
			assert.Empty(t, analysis.Warnings)
			assert.NotEmpty(t, analysis.Candidates)
			assert.InDelta(t, float64(k), analysis.AcceptedOffset, 1e-9)
			assert.Equal(t, analysis.AcceptedOffset, e.AcceptedOffset())
			assert.Contains(t, analysis.Suggestions.Offsets, 0.0)
			assert.Contains(t, analysis.Suggestions.Offsets, float64(k))
			assert.Same(t, analysis, e.Analysis())
		})
	}
}

func TestEngine_Analyze(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("wav_files", func(t *testing.T) {
		e := newEngine(t)
		a, b := delayedPair(t, 2)
		pathA := filepath.Join(dir, "video.wav")
		pathB := filepath.Join(dir, "audio.wav")
		require.NoError(t, audiotest.WriteWAV(pathA, a.Samples, 1, sampleRate))
		require.NoError(t, audiotest.WriteWAV(pathB, b.Samples, 2, sampleRate))

		analysis, err := e.Analyze(ctx, pathA, pathB)
		require.NoError(t, err)
		assert.Empty(t, analysis.Warnings)
		assert.False(t, analysis.Primary.Synthetic)
		assert.False(t, analysis.PrimaryFeatures.Synthetic)
		assert.Len(t, analysis.Secondary.Waveform, track.WaveformPoints)
		assert.InDelta(t, 2.0, analysis.AcceptedOffset, 1e-9)
	})

	t.Run("missing_files", func(t *testing.T) {
		e := newEngine(t)
		analysis, err := e.Analyze(ctx, filepath.Join(dir, "nope-a.wav"), filepath.Join(dir, "nope-b.wav"))
		require.NoError(t, err)
		assert.True(t, analysis.Primary.Synthetic)
		assert.True(t, analysis.Secondary.Synthetic)
		assert.True(t, analysis.PrimaryFeatures.Synthetic)
		require.Len(t, analysis.Warnings, 2)
		for _, w := range analysis.Warnings {
			var decodeErr decoder.DecodeError
			require.True(t, errors.As(w, &decodeErr), w)
			assert.Equal(t, 1+decoder.DefaultRetries, decodeErr.Attempts)
		}
		assert.Equal(t, 0.0, analysis.AcceptedOffset)
	})

	t.Run("cancelled", func(t *testing.T) {
		e := newEngine(t)
		ctx, cancelFn := context.WithCancel(ctx)
		cancelFn()
		_, err := e.Analyze(ctx, filepath.Join(dir, "video.wav"), filepath.Join(dir, "audio.wav"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (e *blockingExtractor) Extract(ctx context.Context, samples []float32, sampleRate int) (*features.FeatureSet, error) {
	e.once.Do(func() { close(e.started) })
	<-e.release
	return features.Placeholder(ctx, sampleRate), nil
}

type failingExtractor struct {
	calls atomic.Int32
}

func (e *failingExtractor) Extract(ctx context.Context, samples []float32, sampleRate int) (*features.FeatureSet, error) {
	e.calls.Add(1)
	return nil, features.ErrNoSamples
}

func TestEngine_AnalysisInProgress(t *testing.T) {
	ctx := context.Background()
	extractor := &blockingExtractor{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := newEngine(t, engine.OptionFeatureExtractor{Extractor: extractor})
	a, b := delayedPair(t, 0)

	done := make(chan error, 1)
	go func() {
		_, err := e.AnalyzeTracks(ctx, a, b)
		done <- err
	}()
	<-extractor.started

	_, err := e.AnalyzeTracks(ctx, a, b)
	assert.ErrorIs(t, err, engine.ErrAnalysisInProgress)
	_, err = e.Analyze(ctx, "a.wav", "b.wav")
	assert.ErrorIs(t, err, engine.ErrAnalysisInProgress)

	close(extractor.release)
	require.NoError(t, <-done)

	_, err = e.AnalyzeTracks(ctx, a, b)
	assert.NoError(t, err)
}

func TestEngine_ExtractionFallback(t *testing.T) {
	ctx := context.Background()
	extractor := &failingExtractor{}
	e := newEngine(t, engine.OptionFeatureExtractor{Extractor: extractor})
	a, b := delayedPair(t, 1)

	analysis, err := e.AnalyzeTracks(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, int32(2*(1+decoder.DefaultRetries)), extractor.calls.Load())
	require.Len(t, analysis.Warnings, 2)
	assert.ErrorIs(t, analysis.Warnings[0], features.ErrNoSamples)
	assert.True(t, analysis.PrimaryFeatures.Synthetic)
	assert.True(t, analysis.SecondaryFeatures.Synthetic)
}

func TestEngine_Playback(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	assert.ErrorIs(t, e.Play(ctx, playback.ModeBoth), engine.ErrNoAnalysis)
	assert.Equal(t, playback.PhaseIdle, e.PlaybackState().Phase)

	var playingSeen atomic.Bool
	e.Subscribe(func(s playback.State) {
		if s.IsPlaying {
			playingSeen.Store(true)
		}
	})

	a, b := delayedPair(t, 1)
	_, err := e.AnalyzeTracks(ctx, a, b)
	require.NoError(t, err)

	assert.Equal(t, 5.0, e.SetOffset(ctx, 7.33))
	assert.Equal(t, -1.3, e.SetOffset(ctx, -1.26))

	require.NoError(t, e.Play(ctx, playback.ModeBoth))
	state := e.PlaybackState()
	assert.NotEqual(t, playback.PhaseIdle, state.Phase)
	assert.Equal(t, -1.3, state.Offset)
	assert.Eventually(t, playingSeen.Load, time.Second, time.Millisecond)

	e.SetOffset(ctx, 0.4)
	assert.Equal(t, playback.PhaseIdle, e.PlaybackState().Phase)
	assert.Equal(t, 0.4, e.AcceptedOffset())

	require.NoError(t, e.Play(ctx, playback.ModePrimaryOnly))
	assert.Equal(t, playback.ModePrimaryOnly, e.PlaybackState().Mode)
	e.Stop(ctx)
	assert.Equal(t, playback.PhaseIdle, e.PlaybackState().Phase)

	t.Run("new_analysis_stops_playback", func(t *testing.T) {
		require.NoError(t, e.Play(ctx, playback.ModeBoth))
		_, err := e.AnalyzeTracks(ctx, a, b)
		require.NoError(t, err)
		assert.Equal(t, playback.PhaseIdle, e.PlaybackState().Phase)
		assert.Equal(t, 1.0, e.AcceptedOffset())
	})
}

func TestEngine_Close(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a, b := delayedPair(t, 0)
	_, err := e.AnalyzeTracks(ctx, a, b)
	require.NoError(t, err)
	require.NoError(t, e.Play(ctx, playback.ModeBoth))

	require.NoError(t, e.Close(ctx))
	require.NoError(t, e.Close(ctx))

	_, err = e.AnalyzeTracks(ctx, a, b)
	assert.ErrorIs(t, err, engine.ErrClosed)
	_, err = e.Analyze(ctx, "a.wav", "b.wav")
	assert.ErrorIs(t, err, engine.ErrClosed)
	assert.ErrorIs(t, e.Play(ctx, playback.ModeBoth), engine.ErrClosed)
}

func TestEngine_FeatureCache(t *testing.T) {
	ctx := context.Background()
	cfg := engine.DefaultConfig()
	cfg.InMemoryCache = true
	e, err := engine.New(cfg, engine.OptionPlayer{Player: audio.PlayerPCMDummy{}})
	require.NoError(t, err)
	defer e.Close(ctx)

	a, b := delayedPair(t, 3)
	first, err := e.AnalyzeTracks(ctx, a, b)
	require.NoError(t, err)
	second, err := e.AnalyzeTracks(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, first.PrimaryFeatures.MFCCFrames, second.PrimaryFeatures.MFCCFrames)
	assert.Equal(t, first.AcceptedOffset, second.AcceptedOffset)
	assert.NotEqual(t, first.ID, second.ID)
}
