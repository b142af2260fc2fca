package director

import (
	"fmt"
	"strings"
)

// PhaseID represents a session phase identifier.
type PhaseID int

const (
	Brief PhaseID = iota
	Play
	Review
	Score
)

// String stringifies the provided phase identifier.
func (p PhaseID) String() string {
	switch p {
	case Brief:
		return "brief"
	case Play:
		return "play"
	case Review:
		return "review"
	case Score:
		return "score"
	default:
		return "unknown"
	}
}

// ParsePhaseID parses a phase identifier from its string form.
func ParsePhaseID(s string) (PhaseID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brief":
		return Brief, nil
	case "play":
		return Play, nil
	case "review":
		return Review, nil
	case "score":
		return Score, nil
	default:
		return 0, fmt.Errorf("unknown phase '%s'", s)
	}
}

// Phase represents one stage of a drill.
type Phase struct {
	ID    PhaseID
	Title string
	// DurationSec is the play window in seconds. Zero means the phase is advanced manually.
	DurationSec int
	OnEnter     []Event
	// OnTick events are surfaced on every play tick.
	OnTick []Event
	OnExit []Event
}

// Timed checks whether the phase runs a one second tick.
func (p *Phase) Timed() bool {
	return p.ID == Play && p.DurationSec > 0
}
