package supervisor

import "errors"

// Close codes reported by transports (RFC 6455, section 7.4.1).
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

var (
	// ErrClosed is returned by Connect after Disconnect or Close.
	ErrClosed = errors.New("supervisor closed")

	// ErrNotOpen is returned by Transport.Send when the transport is not open.
	ErrNotOpen = errors.New("transport not open")
)

// Events receives the lifecycle of one transport. Implementations of Dialer
// call these from their own goroutines, never from inside Dial.
type Events interface {
	Open()
	Message(payload string)
	Error(err error)
	Close(code int)
}

// Transport is a live connection handle.
type Transport interface {
	// Send transmits one text payload. It fails if the transport is not open.
	Send(payload string) error
	// Close shuts the transport down with a normal closure.
	Close() error
}

// Dialer creates transports. Dial returns as soon as the transport exists;
// the outcome of the connection is reported through events. An error from
// Dial means the transport could not even be constructed (e.g. a malformed
// endpoint).
type Dialer interface {
	Dial(endpoint string, events Events) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(endpoint string, events Events) (Transport, error)

// Dial calls f(endpoint, events).
func (f DialerFunc) Dial(endpoint string, events Events) (Transport, error) {
	return f(endpoint, events)
}
