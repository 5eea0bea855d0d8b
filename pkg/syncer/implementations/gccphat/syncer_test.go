package gccphat

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avsync/internal/audiotest"
	"github.com/xaionaro-go/avsync/pkg/syncer"
	"github.com/xaionaro-go/avsync/pkg/track"
)

const sampleRate = 44100

func input(t testing.TB, samples []float32) *syncer.Input {
	tr, err := track.New("test", samples, sampleRate, 0)
	require.NoError(t, err)
	return &syncer.Input{Track: tr}
}

func TestSyncer_CalculateShiftBetween(t *testing.T) {
	s := NewSyncer()
	ctx := context.Background()
	assert.Equal(t, syncer.MethodGCCPHAT, s.Method())

	t.Run("ahead by 10", func(t *testing.T) {
		ref := make([]float32, 1000)
		ref[500] = 1.0

		comp := make([]float32, 1000)
		comp[490] = 1.0

		results, err := s.CalculateShiftBetween(ctx, input(t, ref), input(t, comp))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, -10.0, results[0].Shift*sampleRate, 0.5)
		assert.Greater(t, results[0].Confidence, 0.4)
	})

	t.Run("delayed by 10", func(t *testing.T) {
		ref := make([]float32, 1000)
		ref[500] = 1.0

		comp := make([]float32, 1000)
		comp[510] = 1.0

		results, err := s.CalculateShiftBetween(ctx, input(t, ref), input(t, comp))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 10.0, results[0].Shift*sampleRate, 0.5)
		assert.Greater(t, results[0].Confidence, 0.4)
	})

	t.Run("no shift", func(t *testing.T) {
		ref := make([]float32, 1000)
		ref[500] = 1.0

		results, err := s.CalculateShiftBetween(ctx, input(t, ref), input(t, ref))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 0.0, results[0].Shift*sampleRate, 0.5)
		assert.Greater(t, results[0].Confidence, 0.4)
	})

	t.Run("complex signal ahead by 5", func(t *testing.T) {
		ref := make([]float32, 2000)
		for i := range ref {
			ref[i] = float32(math.Sin(float64(i) * 0.1))
		}

		comp := make([]float32, 2000)
		copy(comp, ref[5:])

		results, err := s.CalculateShiftBetween(ctx, input(t, ref), input(t, comp))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, -5.0, results[0].Shift*sampleRate, 0.5)
	})

	t.Run("delayed noise by 1.5s", func(t *testing.T) {
		a := audiotest.Noise(1, 4*sampleRate, 0.5)
		b := audiotest.Delay(a, sampleRate*3/2)

		results, err := s.CalculateShiftBetween(ctx, input(t, a), input(t, b))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.5, results[0].Shift, 0.001)
	})

	t.Run("silence", func(t *testing.T) {
		results, err := s.CalculateShiftBetween(ctx, input(t, audiotest.Silence(1000)), input(t, audiotest.Silence(1000)))
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func fftOf(x []complex128) []complex128 {
	return fft.FFT(x)
}

func TestCrossCorrelate_maxLag(t *testing.T) {
	const n = 1024
	ref := make([]complex128, n)
	comp := make([]complex128, n)
	ref[100] = 1
	comp[400] = 1
	ref[0] = 0.01

	lag, _, err := CrossCorrelate(fftOf(ref), fftOf(comp), sampleRate, 0, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 300, lag, 0.5)

	lag, _, err = CrossCorrelate(fftOf(ref), fftOf(comp), sampleRate, 0, 0, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, math.Abs(lag), 100.5)
}

func TestCrossCorrelate_invalid(t *testing.T) {
	_, _, err := CrossCorrelate(make([]complex128, 2), make([]complex128, 3), sampleRate, 0, 0, 0)
	assert.Error(t, err)
	_, _, err = CrossCorrelate(make([]complex128, 2), make([]complex128, 2), 0, 0, 0, 0)
	assert.Error(t, err)
}

func BenchmarkSyncer_CalculateShiftBetween(b *testing.B) {
	s := NewSyncer()
	ctx := context.Background()

	sizes := []int{1000, 10000, 100000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("size-%d", n), func(b *testing.B) {
			ref := make([]float32, n)
			for i := range ref {
				ref[i] = float32(math.Sin(float64(i) * 0.1))
			}
			comp := make([]float32, n)
			copy(comp, ref[n/10:])

			refInput, compInput := input(b, ref), input(b, comp)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := s.CalculateShiftBetween(ctx, refInput, compInput)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
