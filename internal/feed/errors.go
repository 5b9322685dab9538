package feed

import "errors"

var (
	// ErrNotConnected is returned when an operation needs an established
	// upstream connection and there is none.
	ErrNotConnected = errors.New("not connected to feed")

	// ErrHandshakeTimeout is returned when the feed does not acknowledge a
	// new connection within the handshake window.
	ErrHandshakeTimeout = errors.New("timed out waiting for feed handshake ack")

	// ErrAlreadyClosed is returned when connecting after Stop.
	ErrAlreadyClosed = errors.New("feed client already closed")
)

// DecodeError reports a frame that was not valid JSON. It is a transient
// per-frame failure: the receive loop logs it and moves on to the next
// frame rather than dropping the connection.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "invalid feed frame: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
