package pulseaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayStream_Close(t *testing.T) {
	s := newPlayStream(nil, nil)

	var err error
	require.NotPanics(t, func() { err = s.Close() })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "playback stream is not initialized")
	assert.Contains(t, err.Error(), "Pulse client is not initialized")

	assert.Equal(t, err, s.Close())
	assert.ErrorIs(t, s.Drain(), ErrStreamClosed)
}

func TestPlayStream_DrainUninitialized(t *testing.T) {
	s := newPlayStream(nil, nil)
	require.NotPanics(t, func() { assert.Error(t, s.Drain()) })
}

func TestRecoverCall(t *testing.T) {
	assert.NoError(t, recoverCall("do nothing", func() {}))

	err := recoverCall("explode", func() { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to explode")
	assert.Contains(t, err.Error(), "boom")
}
