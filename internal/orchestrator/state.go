package orchestrator

// Phase is the coarse state of the dictation cycle.
type Phase int

const (
	Idle Phase = iota
	Recording
	Waiting
	Transcribing
	Success
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Waiting:
		return "waiting"
	case Transcribing:
		return "transcribing"
	case Success:
		return "success"
	}
	return "unknown"
}

// State is a snapshot of the orchestrator. ModelLoading is only reported
// while recording: it is true until the speculative load finishes.
type State struct {
	Phase        Phase
	ModelLoading bool
}

func (s State) String() string {
	if s.Phase == Recording && s.ModelLoading {
		return "recording (model loading)"
	}
	return s.Phase.String()
}
