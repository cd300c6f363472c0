package bcmedia

import "errors"

// BCMedia codec errors. Per spec.md §4.3, any of these are fatal for the
// stream; the supervisor reconnects rather than trying to resynchronize.
var (
	// ErrUnknownMagic is returned when a chunk's leading magic doesn't
	// match any known chunk kind.
	ErrUnknownMagic = errors.New("bcmedia: unknown chunk magic")

	// ErrShortBuffer is returned when fewer bytes are buffered than the
	// chunk's declared or fixed length requires.
	ErrShortBuffer = errors.New("bcmedia: short buffer")
)
