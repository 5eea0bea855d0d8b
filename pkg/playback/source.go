package playback

import (
	"context"
	"time"
)

// Source is a single playable track.
type Source interface {
	// Play starts (or resumes) the playback from the current position.
	Play(ctx context.Context) error
	Pause() error
	Seek(position time.Duration) error
	CurrentTime() time.Duration

	// Duration is the total duration to normalize the progress by.
	Duration() time.Duration

	Ended() bool
	Close() error
}
