package race

// State is the lifecycle state of the single active race. Exactly one value
// is live at a time, owned by the Manager. Wire frames carry the numeric
// value.
type State int

const (
	// StateReady means a station is connected and a race can be requested.
	StateReady State = iota
	// StateStartRequested means an administrator has picked a race and the
	// station has been told to start measuring.
	StateStartRequested
	// StateInProgress means the station reported a measured start and runners
	// are on the course.
	StateInProgress
	// StateDisabled means no station is connected; nothing can be started.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStartRequested:
		return "start_requested"
	case StateInProgress:
		return "in_progress"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
