package bc

import "github.com/nvr-core/bc/pkg/xmlmodel"

// Meta is the parsed header, kept apart from wire-layout concerns (Header)
// so consumers match on it without touching PayloadOffset bookkeeping.
type Meta struct {
	MsgID        uint32
	BodyLen      uint32
	ChannelID    uint8
	StreamType   uint8
	MsgNum       uint16
	ResponseCode ResponseCode
	Class        Class
}

func metaFromHeader(h Header) Meta {
	return Meta{
		MsgID:        h.MsgID,
		BodyLen:      h.BodyLen,
		ChannelID:    h.ChannelID,
		StreamType:   h.StreamType,
		MsgNum:       h.MsgNum,
		ResponseCode: h.ResponseCode,
		Class:        h.Class,
	}
}

// Body is a closed tagged union over the two body shapes spec.md §3
// defines: Legacy (only legacy-login is structured, everything else is
// opaque) and Modern (optional extension + optional payload). Consumers
// type-switch rather than relying on inheritance, per spec.md §9's design
// note on dynamic dispatch by message kind.
type Body interface {
	isBody()
}

// LegacyLogin is the only structured legacy body: msg_id 1 on class
// ClassLegacy, two 32-byte fixed-width C strings.
type LegacyLogin struct {
	Username string
	Password string
}

func (LegacyLogin) isBody() {}

// LegacyUnknown is any other legacy-class body; the bytes are opaque.
type LegacyUnknown struct {
	Raw []byte
}

func (LegacyUnknown) isBody() {}

// PayloadKind distinguishes the three possible shapes of a modern body's
// payload: absent, typed XML, or binary.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadXML
	PayloadBinary
)

// ModernBody is a modern-class body: an optional Extension prelude plus an
// optional XML or binary payload.
type ModernBody struct {
	Extension   *xmlmodel.Extension
	PayloadKind PayloadKind
	XML         *xmlmodel.BcXml
	Binary      []byte
}

func (ModernBody) isBody() {}

// Message is one parsed or to-be-serialized BC message.
type Message struct {
	Meta Meta
	Body Body
}
