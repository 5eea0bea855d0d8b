package decoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

type readSeekCloser interface {
	io.ReadSeeker
	io.Closer
}

type bytesReadCloser struct {
	*bytes.Reader
}

func (bytesReadCloser) Close() error {
	return nil
}

// open returns the content behind a file path, a file:// URL or an
// http(s):// URL. Remote content is read into memory entirely.
func (c *Context) open(ctx context.Context, locator string) (readSeekCloser, error) {
	if !strings.Contains(locator, "://") {
		return os.Open(locator)
	}

	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("unable to parse '%s': %w", locator, err)
	}
	switch u.Scheme {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
		return c.fetch(ctx, u)
	default:
		return nil, ErrUnsupportedLocator{Locator: locator}
	}
}

func (c *Context) fetch(ctx context.Context, u *url.URL) (readSeekCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build a request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch '%s': %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to fetch '%s': %s", u, resp.Status)
	}

	body := io.Reader(resp.Body)
	if c.config.MaxDownloadSize > 0 {
		body = io.LimitReader(resp.Body, c.config.MaxDownloadSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", u, err)
	}
	if c.config.MaxDownloadSize > 0 && int64(len(data)) > c.config.MaxDownloadSize {
		return nil, fmt.Errorf("'%s' is larger than %d bytes", u, c.config.MaxDownloadSize)
	}
	return bytesReadCloser{Reader: bytes.NewReader(data)}, nil
}
