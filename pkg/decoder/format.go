package decoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
)

type Format string

const (
	FormatUndefined = Format("")
	FormatWAV       = Format("wav")
	FormatAIFF      = Format("aiff")
	FormatMP3       = Format("mp3")
	FormatVorbis    = Format("vorbis")
)

// PCM is decoded audio: interleaved samples in [-1, 1].
type PCM struct {
	Samples    []float32
	Channels   int
	SampleRate int

	// MetadataDuration is the duration declared by the container, if any.
	MetadataDuration time.Duration
}

func (pcm *PCM) Frames() int {
	if pcm.Channels <= 0 {
		return 0
	}
	return len(pcm.Samples) / pcm.Channels
}

type FormatDecoder interface {
	Format() Format
	Extensions() []string
	Decode(ctx context.Context, r io.ReadSeeker) (*PCM, error)
}

var (
	formatDecodersLocker sync.Mutex
	formatDecoders       = map[Format]FormatDecoder{}
)

// RegisterFormatDecoder makes a format decodable; it panics if the
// format is already registered.
func RegisterFormatDecoder(d FormatDecoder) {
	formatDecodersLocker.Lock()
	defer formatDecodersLocker.Unlock()
	if _, ok := formatDecoders[d.Format()]; ok {
		panic(fmt.Errorf("format %s is already registered", d.Format()))
	}
	formatDecoders[d.Format()] = d
}

func FormatDecoderFor(f Format) (FormatDecoder, bool) {
	formatDecodersLocker.Lock()
	defer formatDecodersLocker.Unlock()
	d, ok := formatDecoders[f]
	return d, ok
}

func Formats() []Format {
	formatDecodersLocker.Lock()
	defer formatDecodersLocker.Unlock()
	result := make([]Format, 0, len(formatDecoders))
	for f := range formatDecoders {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// DetectFormat guesses the format by the magic bytes, then by the tags
// of the file, then by the extension of the locator. The reader is
// rewound to the beginning afterwards.
func DetectFormat(r io.ReadSeeker, locator string) (Format, error) {
	defer func() { _, _ = r.Seek(0, io.SeekStart) }()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUndefined, fmt.Errorf("unable to seek: %w", err)
	}
	header := make([]byte, 12)
	n, _ := io.ReadFull(r, header)
	header = header[:n]
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("FORM")) &&
		(bytes.Equal(header[8:12], []byte("AIFF")) || bytes.Equal(header[8:12], []byte("AIFC"))):
		return FormatAIFF, nil
	case len(header) >= 4 && bytes.Equal(header[:4], []byte("OggS")):
		return FormatVorbis, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUndefined, fmt.Errorf("unable to seek: %w", err)
	}
	if _, fileType, err := tag.Identify(r); err == nil {
		switch fileType {
		case tag.MP3:
			return FormatMP3, nil
		case tag.OGG:
			return FormatVorbis, nil
		}
	}

	if f := formatByExtension(locator); f != FormatUndefined {
		return f, nil
	}
	if len(header) >= 2 && header[0] == 0xff && header[1]&0xe0 == 0xe0 {
		return FormatMP3, nil
	}
	return FormatUndefined, ErrUnknownFormat{Locator: locator}
}

func formatByExtension(locator string) Format {
	if idx := strings.IndexAny(locator, "?#"); idx >= 0 && strings.Contains(locator, "://") {
		locator = locator[:idx]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(locator), "."))
	if ext == "" {
		return FormatUndefined
	}
	for _, f := range Formats() {
		d, _ := FormatDecoderFor(f)
		for _, candidate := range d.Extensions() {
			if candidate == ext {
				return f
			}
		}
	}
	return FormatUndefined
}
