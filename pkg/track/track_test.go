package track

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avsync/internal/audiotest"
)

func TestWaveform(t *testing.T) {
	for _, n := range []int{1, 7, 149, 150, 151, 1000, 44100} {
		samples := audiotest.Noise(int64(n), n, 0.8)
		w := Waveform(samples)
		require.Len(t, w, WaveformPoints, "n=%d", n)
		for i, v := range w {
			assert.GreaterOrEqual(t, v, 0.0, "n=%d i=%d", n, i)
			assert.LessOrEqual(t, v, 1.0, "n=%d i=%d", n, i)
		}
	}

	t.Run("normalized_to_peak", func(t *testing.T) {
		samples := make([]float32, 1500)
		for i := 700; i < 710; i++ {
			samples[i] = -0.5
		}
		w := Waveform(samples)
		assert.Equal(t, 1.0, w[70])
		assert.Equal(t, 0.0, w[0])
	})

	t.Run("quiet_input_uses_floor", func(t *testing.T) {
		samples := make([]float32, 1500)
		for i := range samples {
			samples[i] = 0.001
		}
		w := Waveform(samples)
		assert.InDelta(t, 0.1, w[0], 1e-6)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, make([]float64, WaveformPoints), Waveform(nil))
	})

	t.Run("non_finite", func(t *testing.T) {
		samples := []float32{float32(math.NaN()), float32(math.Inf(1)), 1}
		for _, v := range Waveform(samples) {
			assert.False(t, math.IsNaN(v))
		}
	})
}

func TestAudioTrack(t *testing.T) {
	tr, err := New("x", make([]float32, 22050), 44100, 0)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, tr.Duration())
	assert.Equal(t, 500*time.Millisecond, tr.PlaybackDuration())

	tr, err = New("x", make([]float32, 22050), 44100, 520*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 520*time.Millisecond, tr.PlaybackDuration())

	_, err = New("x", nil, 0, 0)
	assert.Error(t, err)
}

func TestSynthetic(t *testing.T) {
	a := Synthetic("a", 8000)
	b := Synthetic("b", 8000)
	assert.True(t, a.Synthetic)
	assert.Equal(t, a.Samples, b.Samples)
	assert.Equal(t, 10*time.Second, a.Duration())
	assert.Len(t, a.Waveform, WaveformPoints)
}
