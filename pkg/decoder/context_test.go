package decoder_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/aiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avsync/internal/audiotest"
	"github.com/xaionaro-go/avsync/pkg/decoder"
	_ "github.com/xaionaro-go/avsync/pkg/decoder/formats/all"
)

func writeWAV(t *testing.T, dir, name string, samples []float32, channels, sampleRate int) string {
	filePath := filepath.Join(dir, name)
	require.NoError(t, audiotest.WriteWAV(filePath, samples, channels, sampleRate))
	return filePath
}

func writeAIFF(t *testing.T, dir, name string, samples []float32, channels, sampleRate int) string {
	filePath := filepath.Join(dir, name)
	f, err := os.Create(filePath)
	require.NoError(t, err)
	defer f.Close()

	enc := aiff.NewEncoder(f, sampleRate, 16, channels)
	require.NoError(t, enc.Write(audiotest.IntBuffer(samples, channels, sampleRate)))
	require.NoError(t, enc.Close())
	return filePath
}

func newContext(t *testing.T, sampleRate int) *decoder.Context {
	cfg := decoder.DefaultConfig()
	cfg.SampleRate = sampleRate
	cfg.RetryDelay = 0
	c, err := decoder.NewContext(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestContext_Decode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sine := audiotest.Sine(8000, 8000, 440, 0.5)

	t.Run("wav_mono", func(t *testing.T) {
		c := newContext(t, 8000)
		tr, err := c.Decode(ctx, writeWAV(t, dir, "mono.wav", sine, 1, 8000))
		require.NoError(t, err)
		require.Len(t, tr.Samples, len(sine))
		assert.Equal(t, 8000, tr.SampleRate)
		assert.Equal(t, time.Second, tr.MetadataDuration)
		assert.False(t, tr.Synthetic)
		for i := range sine {
			assert.InDelta(t, sine[i], tr.Samples[i], 1e-3)
		}
	})

	t.Run("wav_stereo_downsampled", func(t *testing.T) {
		c := newContext(t, 4000)
		tr, err := c.Decode(ctx, writeWAV(t, dir, "stereo.wav", sine, 2, 8000))
		require.NoError(t, err)
		assert.InDelta(t, 4000, len(tr.Samples), 2)
		assert.Equal(t, 4000, tr.SampleRate)
		assert.Equal(t, time.Second, tr.MetadataDuration)
		assert.Len(t, tr.Waveform, 150)
	})

	t.Run("aiff", func(t *testing.T) {
		c := newContext(t, 8000)
		tr, err := c.Decode(ctx, writeAIFF(t, dir, "mono.aiff", sine, 1, 8000))
		require.NoError(t, err)
		require.Len(t, tr.Samples, len(sine))
		assert.InDelta(t, sine[100], tr.Samples[100], 1e-3)
	})

	t.Run("file_url", func(t *testing.T) {
		c := newContext(t, 8000)
		filePath := writeWAV(t, dir, "url.wav", sine, 1, 8000)
		tr, err := c.Decode(ctx, "file://"+filePath)
		require.NoError(t, err)
		assert.Len(t, tr.Samples, len(sine))
	})

	t.Run("http", func(t *testing.T) {
		data, err := os.ReadFile(writeWAV(t, dir, "http.wav", sine, 1, 8000))
		require.NoError(t, err)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/track" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(data)
		}))
		defer srv.Close()

		c := newContext(t, 8000)
		tr, err := c.Decode(ctx, srv.URL+"/track")
		require.NoError(t, err)
		assert.Len(t, tr.Samples, len(sine))

		_, err = c.Decode(ctx, srv.URL+"/missing.wav")
		assert.Error(t, err)
	})

	t.Run("unsupported_scheme", func(t *testing.T) {
		c := newContext(t, 8000)
		_, err := c.Decode(ctx, "ftp://example.com/a.wav")
		var unsupported decoder.ErrUnsupportedLocator
		assert.ErrorAs(t, err, &unsupported)
	})

	t.Run("closed", func(t *testing.T) {
		c := newContext(t, 8000)
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
		_, err := c.Decode(ctx, writeWAV(t, dir, "closed.wav", sine, 1, 8000))
		assert.ErrorIs(t, err, decoder.ErrContextClosed)
		_, err = c.DecodeWithRetries(ctx, "whatever.wav")
		assert.ErrorIs(t, err, decoder.ErrContextClosed)
	})
}

func TestContext_DecodeWithRetries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("fallback_to_synthetic", func(t *testing.T) {
		c := newContext(t, 8000)
		locator := filepath.Join(dir, "missing.wav")
		tr, err := c.DecodeWithRetries(ctx, locator)
		var decodeErr decoder.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, 3, decodeErr.Attempts)
		assert.Equal(t, locator, decodeErr.Locator)

		require.NotNil(t, tr)
		assert.True(t, tr.Synthetic)
		assert.Equal(t, 8000, tr.SampleRate)
		assert.Equal(t, 10*time.Second, tr.Duration())

		again, _ := c.DecodeWithRetries(ctx, locator)
		assert.Equal(t, tr.Samples, again.Samples)
	})

	t.Run("garbage", func(t *testing.T) {
		c := newContext(t, 8000)
		filePath := filepath.Join(dir, "garbage.wav")
		require.NoError(t, os.WriteFile(filePath, bytes.Repeat([]byte{1, 2, 3}, 100), 0o644))
		tr, err := c.DecodeWithRetries(ctx, filePath)
		assert.Error(t, err)
		assert.True(t, tr.Synthetic)
	})

	t.Run("success", func(t *testing.T) {
		c := newContext(t, 8000)
		tr, err := c.DecodeWithRetries(ctx, writeWAV(t, dir, "ok.wav", audiotest.Silence(800), 1, 8000))
		require.NoError(t, err)
		assert.False(t, tr.Synthetic)
	})
}

func TestDetectFormat(t *testing.T) {
	for _, tc := range []struct {
		name     string
		data     []byte
		locator  string
		expected decoder.Format
	}{
		{"riff", append([]byte("RIFF\x00\x00\x00\x00WAVE"), 0), "x", decoder.FormatWAV},
		{"form", []byte("FORM\x00\x00\x00\x00AIFF"), "x", decoder.FormatAIFF},
		{"ogg", []byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00"), "x", decoder.FormatVorbis},
		{"id3", append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 32)...), "x", decoder.FormatMP3},
		{"extension", []byte("nothing to see here"), "/a/b/track.MP3", decoder.FormatMP3},
		{"extension_url", []byte("nothing to see here"), "https://host/track.ogg?x=1", decoder.FormatVorbis},
		{"frame_sync", append([]byte{0xff, 0xfb, 0x90, 0x00}, make([]byte, 200)...), "x", decoder.FormatMP3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := bytes.NewReader(tc.data)
			f, err := decoder.DetectFormat(r, tc.locator)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f)
			pos, _ := r.Seek(0, 1)
			assert.Zero(t, pos)
		})
	}

	_, err := decoder.DetectFormat(bytes.NewReader([]byte("??")), "noext")
	var unknown decoder.ErrUnknownFormat
	assert.ErrorAs(t, err, &unknown)
}

func TestFormats(t *testing.T) {
	assert.ElementsMatch(t, []decoder.Format{
		decoder.FormatAIFF, decoder.FormatMP3, decoder.FormatVorbis, decoder.FormatWAV,
	}, decoder.Formats())
}
