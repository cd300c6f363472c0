package bc

import "errors"

// Codec-level errors. These are fatal for the current message only; the
// session continues unless they recur (spec.md §7).
var (
	// ErrBadMagic is returned when the header doesn't start with either
	// recognized magic value.
	ErrBadMagic = errors.New("bc: bad magic")

	// ErrTruncated is returned when fewer bytes are available than the
	// header or body declares.
	ErrTruncated = errors.New("bc: truncated message")

	// ErrMalformedPayload is returned when a payload that should parse as
	// XML does not.
	ErrMalformedPayload = errors.New("bc: malformed payload")
)
