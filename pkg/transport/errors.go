package transport

import "errors"

// Transport-level errors (spec.md §7's transport-retryable class). A
// CamThread session treats all of these as non-fatal: back off and
// reconnect.
var (
	// ErrDroppedConnection is returned when the peer closes or resets the
	// connection.
	ErrDroppedConnection = errors.New("transport: connection dropped")

	// ErrTimeoutDisconnected is returned when a read or write deadline
	// elapses.
	ErrTimeoutDisconnected = errors.New("transport: timed out")

	// ErrSendFailed wraps an underlying write error that isn't a plain
	// timeout or close, analogous to the teacher stack's send-side error
	// going back through a closed channel.
	ErrSendFailed = errors.New("transport: send failed")

	// ErrClosed is returned by operations on a Conn after Close.
	ErrClosed = errors.New("transport: use of closed connection")
)
