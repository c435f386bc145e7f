package session

// State is a tunnel session lifecycle phase.
type State int

const (
	AwaitingHandshake State = iota
	Authenticating
	Connecting
	Relaying
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting_handshake"
	case Authenticating:
		return "authenticating"
	case Connecting:
		return "connecting"
	case Relaying:
		return "relaying"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}
