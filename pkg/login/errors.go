package login

import (
	"errors"
	"fmt"
)

// ErrCameraLoginFail is returned when the camera rejects the modern-login
// credentials (spec.md §4.6's fatal failure mode — the supervisor must not
// retry with the same credentials).
var ErrCameraLoginFail = errors.New("login: camera rejected credentials")

// UnintelligibleReply is returned when a reply doesn't have the shape the
// handshake step expects — missing Encryption record, wrong body kind, a
// response_code that doesn't announce a cipher, or an AES announcement
// without a nonce. It carries enough context
// to log without the caller needing to re-inspect the raw message.
type UnintelligibleReply struct {
	Reply string // which handshake step produced it
	Why   string
}

func (e *UnintelligibleReply) Error() string {
	return fmt.Sprintf("login: unintelligible %s reply: %s", e.Reply, e.Why)
}
