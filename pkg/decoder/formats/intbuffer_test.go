package formats

import (
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
)

func TestBufferDuration(t *testing.T) {
	buf := &goaudio.IntBuffer{Data: make([]int, 2*44100)}
	assert.Equal(t, time.Second, BufferDuration(buf, 2, 88200/2))
	assert.Equal(t, 2*time.Second, BufferDuration(buf, 1, 44100))
	assert.Equal(t, 500*time.Millisecond, BufferDuration(&goaudio.IntBuffer{Data: make([]int, 4000)}, 1, 8000))
	assert.Zero(t, BufferDuration(nil, 1, 8000))
	assert.Zero(t, BufferDuration(buf, 0, 8000))
	assert.Zero(t, BufferDuration(buf, 1, 0))
}

func TestIntBufferToFloat32(t *testing.T) {
	out, err := IntBufferToFloat32(&goaudio.IntBuffer{Data: []int{-32768, 0, 16384}}, 16)
	assert.NoError(t, err)
	assert.Equal(t, []float32{-1, 0, 0.5}, out)

	_, err = IntBufferToFloat32(&goaudio.IntBuffer{Data: []int{1}}, 12)
	assert.Error(t, err)
	_, err = IntBufferToFloat32(nil, 16)
	assert.Error(t, err)
}
