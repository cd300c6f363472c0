package camthread

import "errors"

// ErrDisconnectRequested ends a session deliberately (Disconnect was
// called). Unlike other session-ending errors it doesn't get backed off
// and retried — the supervisor goes idle until Connect is called again.
var ErrDisconnectRequested = errors.New("camthread: disconnect requested")
