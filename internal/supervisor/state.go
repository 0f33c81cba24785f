package supervisor

// State is the connection state of a Supervisor.
type State int

const (
	// Idle means no connection has been attempted yet.
	Idle State = iota
	// Connecting means a transport has been created and is not yet open.
	Connecting
	// Open means the transport is open and sends go straight out.
	Open
	// Closed means the transport failed, was closed by the peer, or the
	// Supervisor was disconnected.
	Closed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the observable connectivity of a Supervisor.
type Status struct {
	State        State
	IsConnecting bool
	IsConnected  bool
	LastError    error // cleared on the next successful open
	Attempts     int   // reconnects scheduled since the last open
	Queued       int   // payloads waiting in the outbound queue
}

func newStatus(state State, lastErr error, attempts, queued int) Status {
	return Status{
		State:        state,
		IsConnecting: state == Connecting,
		IsConnected:  state == Open,
		LastError:    lastErr,
		Attempts:     attempts,
		Queued:       queued,
	}
}
