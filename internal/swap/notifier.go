package swap

// State is the step a swap is in.
type State int

const (
	Idle State = iota
	StoppingProcess
	CapturingCurrent
	ClearingLive
	InstallingTarget
	StartingProcess
)

func (s State) String() string {
	switch s {
	case StoppingProcess:
		return "stopping"
	case CapturingCurrent:
		return "capturing"
	case ClearingLive:
		return "clearing"
	case InstallingTarget:
		return "installing"
	case StartingProcess:
		return "starting"
	default:
		return "idle"
	}
}

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notifier receives progress and user-facing messages from the engine.
type Notifier interface {
	Status(platformID string, state State)
	Notify(platformID string, level Level, msg string)
}

type nopNotifier struct{}

func (nopNotifier) Status(string, State)         {}
func (nopNotifier) Notify(string, Level, string) {}
