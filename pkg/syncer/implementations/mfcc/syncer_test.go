package mfcc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avsync/internal/audiotest"
	"github.com/xaionaro-go/avsync/pkg/features"
	"github.com/xaionaro-go/avsync/pkg/syncer"
)

// 12288 Hz with the default geometry gives exactly one cepstral frame
// per second.
const sampleRate = 12288

func input(t testing.TB, samples []float32) *syncer.Input {
	e, err := features.NewExtractor(features.DefaultConfig())
	require.NoError(t, err)
	fs, err := e.Extract(context.Background(), samples, sampleRate)
	require.NoError(t, err)
	return &syncer.Input{Features: fs}
}

func TestSyncer_CalculateShiftBetween(t *testing.T) {
	ctx := context.Background()
	s := NewSyncer()
	assert.Equal(t, syncer.MethodMFCC, s.Method())

	a := audiotest.Bursts(3, sampleRate, 25, 0.5)

	t.Run("identical", func(t *testing.T) {
		results, err := s.CalculateShiftBetween(ctx, input(t, a), input(t, a))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 0.0, results[0].Shift)
		assert.InDelta(t, 1.0, results[0].Confidence, 1e-9)
	})

	for _, k := range []int{-4, -1, 2, 5} {
		k := k
		t.Run("delayed", func(t *testing.T) {
			var ref, comp []float32
			if k >= 0 {
				ref, comp = a, audiotest.Delay(a, k*sampleRate)
			} else {
				ref, comp = audiotest.Delay(a, -k*sampleRate), a
			}
			results, err := s.CalculateShiftBetween(ctx, input(t, ref), input(t, comp))
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.InDelta(t, float64(k), results[0].Shift, 1e-9)
			assert.InDelta(t, 1.0, results[0].Confidence, 1e-9)
		})
	}

	t.Run("rate_accurate_conversion", func(t *testing.T) {
		fs := &features.FeatureSet{SampleRate: 44100, Config: features.DefaultConfig()}
		for i := 0; i < 50; i++ {
			fs.MFCCFrames = append(fs.MFCCFrames, []float64{float64(i % 7), 1, float64(i % 5)})
		}
		shifted := &features.FeatureSet{SampleRate: 44100, Config: features.DefaultConfig()}
		shifted.MFCCFrames = append([][]float64{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}, fs.MFCCFrames[:47]...)

		results, err := s.CalculateShiftBetween(ctx, &syncer.Input{Features: fs}, &syncer.Input{Features: shifted})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 3*4096*3/44100.0, results[0].Shift, 1e-9)
	})

	t.Run("too_few_frames", func(t *testing.T) {
		fs := &features.FeatureSet{SampleRate: sampleRate, Config: features.DefaultConfig(), MFCCFrames: [][]float64{{1}}}
		results, err := s.CalculateShiftBetween(ctx, &syncer.Input{Features: fs}, &syncer.Input{Features: fs})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("no_features", func(t *testing.T) {
		_, err := s.CalculateShiftBetween(ctx, &syncer.Input{}, &syncer.Input{})
		assert.Error(t, err)
	})
}
