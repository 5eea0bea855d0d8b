// Package decoder turns media locators into decoded mono tracks.
package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avsync/pkg/audio/resampler"
	"github.com/xaionaro-go/avsync/pkg/audio/types"
	"github.com/xaionaro-go/avsync/pkg/track"
)

const (
	DefaultSampleRate      = 44100
	DefaultRetries         = 2
	DefaultRetryDelay      = 100 * time.Millisecond
	DefaultMaxDownloadSize = 1 << 30
)

type Config struct {
	// SampleRate every track is converted to.
	SampleRate int

	// Retries is the amount of extra attempts after a failed decoding.
	Retries    int
	RetryDelay time.Duration

	MaxDownloadSize int64
	HTTPTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:      DefaultSampleRate,
		Retries:         DefaultRetries,
		RetryDelay:      DefaultRetryDelay,
		MaxDownloadSize: DefaultMaxDownloadSize,
		HTTPTimeout:     time.Minute,
	}
}

// Context is the shared decoding context: the resources used by every
// decoding of a session. It is not usable after Close.
type Context struct {
	config     Config
	httpClient *http.Client

	locker sync.Mutex
	closed bool
}

func NewContext(cfg Config) (*Context, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: got %d", cfg.SampleRate)
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Context{
		config: cfg,
		httpClient: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   cfg.HTTPTimeout,
		},
	}, nil
}

func (c *Context) SampleRate() int {
	return c.config.SampleRate
}

func (c *Context) isClosed() bool {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.closed
}

// Close releases the resources. It is safe to call it more than once.
func (c *Context) Close() error {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}

// Decode makes a single attempt to decode the track behind the locator.
func (c *Context) Decode(
	ctx context.Context,
	locator string,
) (_ret *track.AudioTrack, _err error) {
	logger.Tracef(ctx, "Decode(%s)", locator)
	defer func() { logger.Tracef(ctx, "/Decode(%s): %v", locator, _err) }()

	if c.isClosed() {
		return nil, ErrContextClosed
	}

	r, err := c.open(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", locator, err)
	}
	defer r.Close()

	format, err := DetectFormat(r, locator)
	if err != nil {
		return nil, err
	}
	d, ok := FormatDecoderFor(format)
	if !ok {
		return nil, fmt.Errorf("no decoder registered for format %s", format)
	}
	logMetadata(ctx, r, locator)

	pcm, err := d.Decode(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s' as %s: %w", locator, format, err)
	}
	logger.Debugf(ctx, "decoded '%s': %s, %d Hz, %d channels, %d frames", locator, format, pcm.SampleRate, pcm.Channels, pcm.Frames())

	samples, err := c.toMono(pcm)
	if err != nil {
		return nil, fmt.Errorf("unable to convert '%s' to %d Hz mono: %w", locator, c.config.SampleRate, err)
	}
	return track.New(locator, samples, c.config.SampleRate, pcm.MetadataDuration)
}

func (c *Context) toMono(pcm *PCM) ([]float32, error) {
	if pcm.Channels <= 0 || pcm.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid PCM parameters: %d channels, %d Hz", pcm.Channels, pcm.SampleRate)
	}
	if pcm.Channels == 1 && pcm.SampleRate == c.config.SampleRate {
		return pcm.Samples, nil
	}
	in := resampler.Format{
		Channels:   types.Channel(pcm.Channels),
		SampleRate: types.SampleRate(pcm.SampleRate),
		PCMFormat:  types.PCMFormatFloat32LE,
	}
	return resampler.ReadAllMonoFloat32(
		in,
		bytes.NewReader(resampler.Float32LEBytes(pcm.Samples)),
		types.SampleRate(c.config.SampleRate),
	)
}

func logMetadata(ctx context.Context, r readSeekCloser, locator string) {
	defer func() { _, _ = r.Seek(0, io.SeekStart) }()
	m, err := tag.ReadFrom(r)
	if err != nil {
		return
	}
	logger.Debugf(ctx, "'%s' metadata: title:'%s' artist:'%s' format:%s", locator, m.Title(), m.Artist(), m.Format())
}

// DecodeWithRetries decodes the track, retrying Config.Retries times. If
// every attempt fails, the deterministic synthetic track is returned
// together with a DecodeError, so that the caller may carry on with a
// degraded but usable track.
func (c *Context) DecodeWithRetries(
	ctx context.Context,
	locator string,
) (*track.AudioTrack, error) {
	attempts := 1 + c.config.Retries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		t, err := c.Decode(ctx, locator)
		if err == nil {
			return t, nil
		}
		lastErr = err
		logger.Warnf(ctx, "attempt %d/%d to decode '%s' failed: %v", attempt, attempts, locator, err)
		if errors.Is(err, ErrContextClosed) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts && c.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return track.Synthetic(locator, c.config.SampleRate), DecodeError{
		Locator:  locator,
		Attempts: attempts,
		Err:      lastErr,
	}
}
