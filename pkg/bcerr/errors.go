// Package bcerr carries the per-operation error taxonomy members of
// spec.md §7 that aren't owned by any single transport-level package:
// CameraServiceUnavailable (an RPC the camera answered with a non-OK,
// non-retryable response_code) and AbilityMissing (a command the current
// firmware doesn't support, per the ability-gating feature in SPEC_FULL.md
// §9).
package bcerr

import (
	"errors"
	"fmt"
)

// CameraServiceUnavailable reports a msg_id/response_code pair the caller
// asked for that the camera refused outright (not a transient 400, not a
// dropped connection — the link is fine, the camera just said no).
type CameraServiceUnavailable struct {
	MsgID uint32
	Code  uint16
}

func (e *CameraServiceUnavailable) Error() string {
	return fmt.Sprintf("bcerr: camera service unavailable: msg_id=%d response_code=%d", e.MsgID, e.Code)
}

// AbilityMissing reports a command attempted against firmware whose
// cached AbilityInfo/Support response doesn't list it.
type AbilityMissing struct {
	Name string
}

func (e *AbilityMissing) Error() string {
	return fmt.Sprintf("bcerr: ability %q not supported by this camera", e.Name)
}

// ErrNoSession is returned by an RPC attempted while the owning CamThread
// has no live connection.
var ErrNoSession = errors.New("bcerr: no live camera session")
