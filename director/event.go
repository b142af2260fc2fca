package director

// EventKind represents the kind of a phase event.
type EventKind int

const (
	ShowTipEvent EventKind = iota
	SpawnCheckpointEvent
	EndPlayEvent
)

// String stringifies the provided event kind.
func (k EventKind) String() string {
	switch k {
	case ShowTipEvent:
		return "showTip"
	case SpawnCheckpointEvent:
		return "spawnCheckpoint"
	case EndPlayEvent:
		return "endPlay"
	default:
		return "unknown"
	}
}

// Event represents a phase lifecycle event. Concrete events are ShowTip, SpawnCheckpoint and
// EndPlay.
type Event interface {
	Kind() EventKind
}

// TipTrigger describes what prompted a tip.
type TipTrigger int

const (
	OnEnterTrigger TipTrigger = iota
	RuleBreakTrigger
	MilestoneTrigger
)

// String stringifies the provided tip trigger.
func (t TipTrigger) String() string {
	switch t {
	case OnEnterTrigger:
		return "enter"
	case RuleBreakTrigger:
		return "ruleBreak"
	case MilestoneTrigger:
		return "milestone"
	default:
		return "unknown"
	}
}

// ShowTip surfaces advisory text to the host.
type ShowTip struct {
	Text string
	When TipTrigger
}

// Kind returns the event kind.
func (ShowTip) Kind() EventKind { return ShowTipEvent }

// SpawnCheckpoint announces a rule the player is checked against.
type SpawnCheckpoint struct {
	Rule    string
	Payload map[string]string
}

// Kind returns the event kind.
func (SpawnCheckpoint) Kind() EventKind { return SpawnCheckpointEvent }

// EndReason describes why play ended.
type EndReason int

const (
	Timeout EndReason = iota
	TargetsMet
	StoppedOut
)

// String stringifies the provided end reason.
func (r EndReason) String() string {
	switch r {
	case Timeout:
		return "timeout"
	case TargetsMet:
		return "targetsMet"
	case StoppedOut:
		return "stoppedOut"
	default:
		return "unknown"
	}
}

// EndPlay signals the end of the play phase.
type EndPlay struct {
	Reason EndReason
}

// Kind returns the event kind.
func (EndPlay) Kind() EventKind { return EndPlayEvent }

var (
	// Ensure the events implement the Event interface.
	_ Event = ShowTip{}
	_ Event = SpawnCheckpoint{}
	_ Event = EndPlay{}
)
