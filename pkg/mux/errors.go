package mux

import "errors"

var (
	// ErrDroppedConnection is the shutdown error the mux records when it
	// shuts down without a cause of its own. Run always shuts down with the
	// transport's read error or the context's error, and that is what
	// subscribers observe; pkg/neocam returns this value when a stream's
	// subscription closes without an error.
	ErrDroppedConnection = errors.New("mux: connection dropped")

	// ErrClosed is returned by Send/Subscribe once the mux has shut down.
	ErrClosed = errors.New("mux: closed")

	// errSlowConsumer marks a subscriber dropped for not draining its
	// queue. It never reaches a caller (spec.md §4.5: "not surfaced") —
	// the subscriber just observes its channel close, same as an ordinary
	// Unsubscribe.
	errSlowConsumer = errors.New("mux: slow consumer")
)
