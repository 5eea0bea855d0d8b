package playback

import (
	"fmt"
	"strings"
)

type Mode int

const (
	ModeBoth = Mode(iota)
	ModePrimaryOnly
	ModeSecondaryOnly
	EndOfMode
)

func (m Mode) String() string {
	switch m {
	case ModeBoth:
		return "both"
	case ModePrimaryOnly:
		return "primary-only"
	case ModeSecondaryOnly:
		return "secondary-only"
	default:
		return fmt.Sprintf("unknown_mode_%d", int(m))
	}
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for candidate := Mode(0); candidate < EndOfMode; candidate++ {
		if candidate.String() == s {
			*m = candidate
			return nil
		}
	}
	switch s {
	case "video", "primary":
		*m = ModePrimaryOnly
		return nil
	case "audio", "secondary":
		*m = ModeSecondaryOnly
		return nil
	}
	return fmt.Errorf("unknown playback mode '%s'", s)
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}

type Phase int

const (
	PhaseIdle = Phase(iota)
	PhaseStarting
	PhasePlaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhasePlaying:
		return "playing"
	default:
		return fmt.Sprintf("unknown_phase_%d", int(p))
	}
}
