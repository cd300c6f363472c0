// Package bc implements the BC wire codec: header framing, the
// extension/payload split for modern messages, the per-connection
// decryption context, and message identity (spec.md §3, §4.2, §6).
package bc

import (
	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/xmlmodel"
)

const legacyFieldLen = 32

// Parse decodes one complete BC message from the front of buf against ctx.
// It returns the message, the number of bytes consumed (header + body),
// and an error from the ErrBadMagic/ErrTruncated/ErrMalformedPayload
// taxonomy. ctx's binary-mode set may be mutated (binary promotion);
// nothing else about ctx changes here — the cipher itself is only ever
// swapped by the login handshake.
func Parse(buf []byte, ctx *Context) (*Message, int, error) {
	h, headerLen, err := DecodeHeader(buf)
	if err != nil {
		return nil, 0, err
	}

	total := headerLen + int(h.BodyLen)
	if len(buf) < total {
		return nil, 0, ErrTruncated
	}
	body := buf[headerLen:total]
	meta := metaFromHeader(h)

	var msgBody Body
	if !h.Class.IsModern() {
		msgBody, err = parseLegacyBody(h, body)
	} else {
		msgBody, err = parseModernBody(h, body, ctx)
	}
	if err != nil {
		return nil, 0, err
	}

	return &Message{Meta: meta, Body: msgBody}, total, nil
}

func parseLegacyBody(h Header, body []byte) (Body, error) {
	if h.MsgID != MsgIDLogin {
		return LegacyUnknown{Raw: append([]byte(nil), body...)}, nil
	}
	if len(body) < 2*legacyFieldLen {
		return nil, ErrTruncated
	}
	return LegacyLogin{
		Username: fixedStringDecode(body[0:legacyFieldLen]),
		Password: fixedStringDecode(body[legacyFieldLen : 2*legacyFieldLen]),
	}, nil
}

func parseModernBody(h Header, body []byte, ctx *Context) (Body, error) {
	extLen := int(h.ExtensionLen())
	if len(body) < extLen {
		return nil, ErrTruncated
	}
	extBuf := body[:extLen]
	payloadBuf := body[extLen:]

	var ext *xmlmodel.Extension
	if extLen > 0 {
		decExt, err := ctx.Engine().Decrypt(uint32(h.ChannelID), extBuf)
		if err != nil {
			return nil, ErrMalformedPayload
		}
		ext = &xmlmodel.Extension{}
		if len(decExt) > 0 {
			if err := xmlmodel.Unmarshal(decExt, ext); err != nil {
				return nil, ErrMalformedPayload
			}
		}
	}

	if ext.IsBinary() {
		// Binary promotion persists: once set, every later message on this
		// msg_num decodes as binary for the rest of the session; nothing in
		// this module removes it again.
		ctx.MarkBinary(h.MsgNum)
	}
	isBinary := ext.IsBinary() || ctx.IsBinary(h.MsgNum)

	payloadEngine := selectInboundPayloadEngine(h, ctx)

	if isBinary {
		bin, err := decodeBinaryPayload(h, ext, ctx, payloadEngine, payloadBuf)
		if err != nil {
			return nil, err
		}
		return ModernBody{Extension: ext, PayloadKind: PayloadBinary, Binary: bin}, nil
	}

	if len(payloadBuf) == 0 {
		return ModernBody{Extension: ext, PayloadKind: PayloadNone}, nil
	}

	decoded, err := payloadEngine.Decrypt(uint32(h.ChannelID), payloadBuf)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	var x xmlmodel.BcXml
	if err := xmlmodel.Unmarshal(decoded, &x); err != nil {
		return nil, ErrMalformedPayload
	}
	return ModernBody{Extension: ext, PayloadKind: PayloadXML, XML: &x}, nil
}

// decodeBinaryPayload implements spec.md §4.2's "Binary length" rule: under
// FullAes with an explicit encrypt_len, decrypt and truncate to strip AES
// block padding; otherwise the raw pre-decryption buffer is retained.
func decodeBinaryPayload(h Header, ext *xmlmodel.Extension, ctx *Context, engine *crypto.Engine, payloadBuf []byte) ([]byte, error) {
	if ctx.Protocol() == crypto.FullAes && ext.HasEncryptLen() {
		decoded, err := engine.Decrypt(uint32(h.ChannelID), payloadBuf)
		if err != nil {
			return nil, ErrMalformedPayload
		}
		n := int(ext.EncryptLenValue())
		if n > len(decoded) {
			n = len(decoded)
		}
		return decoded[:n], nil
	}
	return append([]byte(nil), payloadBuf...), nil
}

// selectInboundPayloadEngine implements spec.md §4.2's three-rule payload
// cipher selection for a received message.
func selectInboundPayloadEngine(h Header, ctx *Context) *crypto.Engine {
	base := ctx.Engine()
	switch {
	case h.MsgID == MsgIDLogin && h.ResponseCode.IsEncryptionNegotiation():
		if h.ResponseCode.LowByte() == 0 {
			return base.WithProtocol(crypto.Unencrypted)
		}
		return base.WithProtocol(crypto.BCEncrypt)
	case h.MsgID == MsgIDLogin && (base.Protocol() == crypto.Aes || base.Protocol() == crypto.FullAes):
		// Login traffic never uses AES (spec.md invariant 6).
		return base.WithProtocol(crypto.BCEncrypt)
	default:
		return base
	}
}

// selectOutboundPayloadEngine is the outbound half of invariant 6: a
// request on msg_id 1 never goes out AES-encrypted even if the context has
// already negotiated AES for everything else.
func selectOutboundPayloadEngine(meta Meta, ctx *Context) *crypto.Engine {
	base := ctx.Engine()
	if meta.MsgID == MsgIDLogin && (base.Protocol() == crypto.Aes || base.Protocol() == crypto.FullAes) {
		return base.WithProtocol(crypto.BCEncrypt)
	}
	return base
}

// Serialize is the inverse of Parse: it builds wire bytes for msg against
// ctx. The caller supplies Meta.Class to pick the framing; for
// HasPayloadOffset classes, Serialize concatenates extension + payload and
// sets payload_offset to the encrypted extension length.
func Serialize(msg *Message, ctx *Context) ([]byte, error) {
	switch body := msg.Body.(type) {
	case LegacyLogin:
		return serializeLegacyLogin(msg.Meta, body)
	case LegacyUnknown:
		return serializeRawLegacy(msg.Meta, body.Raw)
	case ModernBody:
		return serializeModern(msg.Meta, body, ctx)
	default:
		return nil, ErrMalformedPayload
	}
}

func serializeLegacyLogin(meta Meta, body LegacyLogin) ([]byte, error) {
	raw := make([]byte, 2*legacyFieldLen)
	copy(raw[0:legacyFieldLen], fixedStringEncode(body.Username))
	copy(raw[legacyFieldLen:2*legacyFieldLen], fixedStringEncode(body.Password))
	return serializeRawLegacy(meta, raw)
}

func serializeRawLegacy(meta Meta, raw []byte) ([]byte, error) {
	h := Header{
		Magic:        MagicLE,
		MsgID:        meta.MsgID,
		BodyLen:      uint32(len(raw)),
		ChannelID:    meta.ChannelID,
		StreamType:   meta.StreamType,
		MsgNum:       meta.MsgNum,
		ResponseCode: meta.ResponseCode,
		Class:        ClassLegacy,
	}
	out := h.Encode()
	return append(out, raw...), nil
}

func serializeModern(meta Meta, body ModernBody, ctx *Context) ([]byte, error) {
	var extBytes []byte
	if body.Extension != nil {
		plain, err := xmlmodel.Marshal(body.Extension)
		if err != nil {
			return nil, err
		}
		extBytes, err = ctx.Engine().Encrypt(uint32(meta.ChannelID), plain)
		if err != nil {
			return nil, err
		}
	}

	engine := selectOutboundPayloadEngine(meta, ctx)

	var payloadBytes []byte
	switch body.PayloadKind {
	case PayloadNone:
		// nothing to encode
	case PayloadXML:
		plain, err := xmlmodel.Marshal(body.XML)
		if err != nil {
			return nil, err
		}
		payloadBytes, err = engine.Encrypt(uint32(meta.ChannelID), plain)
		if err != nil {
			return nil, err
		}
	case PayloadBinary:
		payloadBytes = body.Binary
	}

	h := Header{
		Magic:        MagicLE,
		MsgID:        meta.MsgID,
		ChannelID:    meta.ChannelID,
		StreamType:   meta.StreamType,
		MsgNum:       meta.MsgNum,
		ResponseCode: meta.ResponseCode,
		Class:        meta.Class,
	}
	if meta.Class.HasPayloadOffset() {
		h.PayloadOffset = uint32(len(extBytes))
	}
	h.BodyLen = uint32(len(extBytes) + len(payloadBytes))

	out := h.Encode()
	out = append(out, extBytes...)
	out = append(out, payloadBytes...)
	return out, nil
}

// fixedStringDecode trims a fixed-width field at its first NUL byte.
func fixedStringDecode(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// fixedStringEncode pads/truncates s into a legacyFieldLen-byte NUL-padded
// field.
func fixedStringEncode(s string) []byte {
	out := make([]byte, legacyFieldLen)
	copy(out, s)
	return out
}
