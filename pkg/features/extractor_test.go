package features

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avsync/internal/audiotest"
)

func newTestExtractor(t testing.TB) *Extractor {
	e, err := NewExtractor(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestExtract(t *testing.T) {
	ctx := context.Background()
	const sampleRate = 44100

	t.Run("frame_count", func(t *testing.T) {
		e := newTestExtractor(t)
		samples := audiotest.Sine(sampleRate, 10*sampleRate, 440, 0.5)
		fs, err := e.Extract(ctx, samples, sampleRate)
		require.NoError(t, err)

		expected := (len(samples)-2048)/4096 + 1
		assert.Equal(t, expected, fs.NumFrames())
		assert.Len(t, fs.RMS, expected)
		assert.Len(t, fs.SpectralCentroids, expected)
		assert.Len(t, fs.MFCCFrames, (expected+2)/3)
		for _, c := range fs.MFCCFrames {
			assert.Len(t, c, 13)
		}
	})

	t.Run("truncated_to_max_duration", func(t *testing.T) {
		e := newTestExtractor(t)
		samples := audiotest.Noise(1, 40*sampleRate, 0.3)
		fs, err := e.Extract(ctx, samples, sampleRate)
		require.NoError(t, err)
		last := fs.FrameStarts[len(fs.FrameStarts)-1]
		assert.LessOrEqual(t, last+2048, 30*sampleRate)
	})

	t.Run("sine_centroid_and_rms", func(t *testing.T) {
		e := newTestExtractor(t)
		samples := audiotest.Sine(sampleRate, 2*sampleRate, 1000, 0.5)
		fs, err := e.Extract(ctx, samples, sampleRate)
		require.NoError(t, err)
		for i := range fs.RMS {
			assert.InDelta(t, 0.5/math.Sqrt2, fs.RMS[i], 0.01)
			assert.InDelta(t, 1000, fs.SpectralCentroids[i], 150)
		}
	})

	t.Run("onsets_non_decreasing", func(t *testing.T) {
		e := newTestExtractor(t)
		samples := audiotest.Bursts(42, sampleRate, 20, 0.5)
		fs, err := e.Extract(ctx, samples, sampleRate)
		require.NoError(t, err)
		require.NotEmpty(t, fs.Onsets)
		for i := 1; i < len(fs.Onsets); i++ {
			assert.GreaterOrEqual(t, fs.Onsets[i], fs.Onsets[i-1])
		}
	})

	t.Run("silence_has_no_onsets", func(t *testing.T) {
		e := newTestExtractor(t)
		fs, err := e.Extract(ctx, audiotest.Silence(5*sampleRate), sampleRate)
		require.NoError(t, err)
		assert.Empty(t, fs.Onsets)
		for _, c := range fs.SpectralCentroids {
			assert.Zero(t, c)
		}
	})

	t.Run("non_finite_frames_are_skipped", func(t *testing.T) {
		e := newTestExtractor(t)
		samples := audiotest.Sine(sampleRate, 3*sampleRate, 440, 0.5)
		samples[4096+10] = float32(math.NaN())
		samples[3*4096+1] = float32(math.Inf(1))
		fs, err := e.Extract(ctx, samples, sampleRate)
		require.NoError(t, err)
		assert.Equal(t, 2, fs.SkippedFrames)
		assert.NotContains(t, fs.FrameStarts, 4096)
		assert.NotContains(t, fs.FrameStarts, 3*4096)
		assert.Len(t, fs.RMS, len(fs.FrameStarts))
		for _, v := range fs.RMS {
			assert.False(t, math.IsNaN(v))
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		samples := audiotest.Bursts(7, sampleRate, 5, 0.5)
		a, err := newTestExtractor(t).Extract(ctx, samples, sampleRate)
		require.NoError(t, err)
		b, err := newTestExtractor(t).Extract(ctx, samples, sampleRate)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("invalid_input", func(t *testing.T) {
		e := newTestExtractor(t)
		_, err := e.Extract(ctx, nil, sampleRate)
		assert.ErrorIs(t, err, ErrNoSamples)
		_, err = e.Extract(ctx, []float32{0}, 0)
		assert.ErrorIs(t, err, ErrInvalidSampleRate)
	})

	t.Run("shorter_than_a_frame", func(t *testing.T) {
		e := newTestExtractor(t)
		fs, err := e.Extract(ctx, make([]float32, 100), sampleRate)
		require.NoError(t, err)
		assert.Zero(t, fs.NumFrames())
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.FrameSize = 1000
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NumMelFilters = 5
	assert.Error(t, cfg.Validate())
}

func TestMFCCFramePeriod(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 1.0, cfg.MFCCFramePeriod(12288), 1e-9)
	assert.InDelta(t, 12288.0/44100, cfg.MFCCFramePeriod(44100), 1e-9)
}

func TestPlaceholder(t *testing.T) {
	a := Placeholder(context.Background(), 22050)
	b := Placeholder(context.Background(), 22050)
	assert.True(t, a.Synthetic)
	assert.Equal(t, a, b)
	assert.NotZero(t, a.NumFrames())
}

func BenchmarkExtract(b *testing.B) {
	e := newTestExtractor(b)
	samples := audiotest.Noise(1, 30*44100, 0.5)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Extract(ctx, samples, 44100)
	}
}
