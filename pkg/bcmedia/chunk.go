// Package bcmedia implements the BCMedia chunk demuxer: the framing used
// for video/audio data carried over a camera's media channel (spec.md
// §4.3). It is a lazy, one-chunk-at-a-time decoder over a byte buffer —
// there is no persistent per-connection state the way pkg/bc has a
// Context, since chunk framing doesn't depend on anything negotiated
// earlier.
package bcmedia

// VideoType distinguishes the two codecs cameras in this family use.
// Unlike the chunk magic, this is not on the wire — it's inferred by
// inspecting the NAL/parameter-set structure of the frame data.
type VideoType int

const (
	VideoTypeUnknown VideoType = iota
	VideoTypeH264
	VideoTypeH265
)

// WallClock is the fixed-width timestamp embedded in Info chunks.
type WallClock struct {
	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8
}

// Chunk is a closed tagged union over the chunk kinds spec.md §4.3 defines.
type Chunk interface {
	isChunk()
}

// Info carries stream dimensions/fps and the start/end wall-clock range
// for the stream segment that follows. InfoV1/InfoV2 share this shape;
// Version distinguishes which magic produced it.
type Info struct {
	Version int // 1 or 2
	Width   uint32
	Height  uint32
	FPS     uint32
	Start   WallClock
	End     WallClock
}

func (Info) isChunk() {}

// Iframe is one key frame: channel, codec, microsecond timestamp, an
// optional POSIX wall-clock time, and the raw frame data.
type Iframe struct {
	Channel     int
	VideoType   VideoType
	TimestampUs uint32
	PosixTime   uint32 // 0 if the camera didn't supply one
	Data        []byte
}

func (Iframe) isChunk() {}

// Pframe is a delta frame: same as Iframe but with no POSIX time field on
// the wire.
type Pframe struct {
	Channel     int
	VideoType   VideoType
	TimestampUs uint32
	Data        []byte
}

func (Pframe) isChunk() {}

// Aac is one ADTS-framed AAC audio chunk. DurationUs is derived from the
// ADTS header's sampling-frequency index and raw-data-block count.
type Aac struct {
	Data       []byte
	DurationUs uint64
}

func (Aac) isChunk() {}

// Adpcm is one ADPCM audio chunk: a 4-byte predictor/control block
// followed by samples. Sample rate is fixed at 8 kHz for this family.
type Adpcm struct {
	BlockSize int
	Data      []byte
	DurationUs uint64
}

func (Adpcm) isChunk() {}
