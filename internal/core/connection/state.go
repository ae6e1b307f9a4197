package connection

// State is the push channel lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Active reports whether the state is one where the manager owns a dial,
// a channel or a pending retry.
func (s State) Active() bool {
	return s != Disconnected
}
