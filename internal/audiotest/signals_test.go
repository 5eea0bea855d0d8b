package audiotest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelay(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5}

	t.Run("forward", func(t *testing.T) {
		assert.Equal(t, []float32{0, 0, 1, 2, 3}, Delay(src, 2))
	})
	t.Run("zero", func(t *testing.T) {
		assert.Equal(t, src, Delay(src, 0))
	})
	t.Run("negative_advances", func(t *testing.T) {
		var out []float32
		require.NotPanics(t, func() { out = Delay(src, -2) })
		assert.Equal(t, []float32{3, 4, 5, 0, 0}, out)
	})
	t.Run("beyond_length", func(t *testing.T) {
		assert.Equal(t, make([]float32, len(src)), Delay(src, 7))
		assert.Equal(t, make([]float32, len(src)), Delay(src, -7))
	})
	t.Run("source_untouched", func(t *testing.T) {
		Delay(src, -3)
		assert.Equal(t, []float32{1, 2, 3, 4, 5}, src)
	})
}
