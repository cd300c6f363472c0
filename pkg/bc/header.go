package bc

import "encoding/binary"

// Class selects the framing of the body that follows the fixed header
// (spec.md §3, §6).
type Class uint16

const (
	// ClassLegacy is the legacy login frame: two fixed-width credential
	// strings, no extension/payload split.
	ClassLegacy Class = 0x6514
	// ClassModernNoOffset is a modern frame with no payload_offset field;
	// the whole body is payload (no extension).
	ClassModernNoOffset Class = 0x6614
	// ClassModernOffset is a modern frame carrying a payload_offset field
	// that splits the body into extension + payload.
	ClassModernOffset Class = 0x6414
	// ClassModernOffsetZero behaves like ClassModernOffset; seen on
	// successful modern logins and zero-extension replies.
	ClassModernOffsetZero Class = 0x0000
)

// IsModern reports whether this class uses the modern (extension+payload)
// body framing. Per spec.md §3 the predicate is simply "class != legacy".
func (c Class) IsModern() bool {
	return c != ClassLegacy
}

// HasPayloadOffset reports whether the header carries a payload_offset
// field (spec.md invariant 4: present iff class is one of these two).
func (c Class) HasPayloadOffset() bool {
	return c == ClassModernOffset || c == ClassModernOffsetZero
}

// Magic values. MagicLE is the only orientation the header's fixed fields
// are ever encoded in; MagicReverse is tolerated as a hint about payload
// endianness but does not change how the header itself is parsed (spec.md
// §6, §9 open question).
const (
	MagicLE      uint32 = 0x0abcdef0
	MagicReverse uint32 = 0x0fedcba0
)

// fixedHeaderSize is the header length before the optional payload_offset
// field: magic+msg_id+body_len (4+4+4) + channel_id+stream_type (1+1) +
// msg_num+response_code+class (2+2+2).
const fixedHeaderSize = 20

// extendedHeaderSize adds the 4-byte payload_offset field.
const extendedHeaderSize = fixedHeaderSize + 4

// MinHeaderSize and MaxHeaderSize let a transport peek enough bytes to
// call DecodeHeader without knowing the class in advance: peek
// MinHeaderSize first, and if DecodeHeader reports ErrTruncated, peek
// MaxHeaderSize and retry.
const (
	MinHeaderSize = fixedHeaderSize
	MaxHeaderSize = extendedHeaderSize
)

// Header is the fixed 20- or 24-byte BC message prefix.
type Header struct {
	Magic         uint32
	MsgID         uint32
	BodyLen       uint32
	ChannelID     uint8
	StreamType    uint8
	MsgNum        uint16
	ResponseCode  ResponseCode
	Class         Class
	PayloadOffset uint32 // valid only when Class.HasPayloadOffset()
}

// Size returns the encoded length of this header, 20 or 24 bytes.
func (h *Header) Size() int {
	if h.Class.HasPayloadOffset() {
		return extendedHeaderSize
	}
	return fixedHeaderSize
}

// DecodeHeader parses the fixed header prefix from buf. It reports
// ErrBadMagic if neither recognized magic is present, and ErrTruncated if
// buf is shorter than the header the class field implies.
func DecodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < fixedHeaderSize {
		return Header{}, 0, ErrTruncated
	}

	var h Header
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	if h.Magic != MagicLE && h.Magic != MagicReverse {
		return Header{}, 0, ErrBadMagic
	}

	h.MsgID = binary.LittleEndian.Uint32(buf[4:8])
	h.BodyLen = binary.LittleEndian.Uint32(buf[8:12])
	h.ChannelID = buf[12]
	h.StreamType = buf[13]
	h.MsgNum = binary.LittleEndian.Uint16(buf[14:16])
	h.ResponseCode = ResponseCode(binary.LittleEndian.Uint16(buf[16:18]))
	h.Class = Class(binary.LittleEndian.Uint16(buf[18:20]))

	n := fixedHeaderSize
	if h.Class.HasPayloadOffset() {
		if len(buf) < extendedHeaderSize {
			return Header{}, 0, ErrTruncated
		}
		h.PayloadOffset = binary.LittleEndian.Uint32(buf[20:24])
		n = extendedHeaderSize
	}

	return h, n, nil
}

// Encode serializes the header. Callers that want reverse-endian framing
// set h.Magic to MagicReverse before calling; Encode does not choose the
// magic itself.
func (h *Header) Encode() []byte {
	buf := make([]byte, h.Size())
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.MsgID)
	binary.LittleEndian.PutUint32(buf[8:12], h.BodyLen)
	buf[12] = h.ChannelID
	buf[13] = h.StreamType
	binary.LittleEndian.PutUint16(buf[14:16], h.MsgNum)
	binary.LittleEndian.PutUint16(buf[16:18], uint16(h.ResponseCode))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(h.Class))
	if h.Class.HasPayloadOffset() {
		binary.LittleEndian.PutUint32(buf[20:24], h.PayloadOffset)
	}
	return buf
}

// ExtensionLen returns the byte length of the extension prefix implied by
// payload_offset, or 0 for classes without one.
func (h *Header) ExtensionLen() uint32 {
	if !h.Class.HasPayloadOffset() {
		return 0
	}
	return h.PayloadOffset
}
