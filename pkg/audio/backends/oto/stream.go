package oto

import (
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/avsync/pkg/audio/types"
)

const drainPollInterval = 10 * time.Millisecond

type PlayStream struct {
	Player *oto.Player
}

var _ types.PlayStream = (*PlayStream)(nil)

func newPlayStream(player *oto.Player) *PlayStream {
	return &PlayStream{
		Player: player,
	}
}

func (s *PlayStream) Drain() error {
	for s.Player.IsPlaying() {
		time.Sleep(drainPollInterval)
	}
	if err := s.Player.Err(); err != nil {
		return fmt.Errorf("an error occurred during playback: %w", err)
	}
	return nil
}

// Close stops the playback; oto players have no explicit release and are
// garbage collected.
func (s *PlayStream) Close() error {
	s.Player.Pause()
	return nil
}
