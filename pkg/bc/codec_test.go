package bc

import (
	"bytes"
	"testing"

	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/xmlmodel"
)

func newUnencryptedContext() *Context {
	return NewContext("admin", "", crypto.Unencrypted)
}

// TestCodecRoundTripUnencrypted covers invariant 1: parse(serialize(m)) == m.
func TestCodecRoundTripUnencrypted(t *testing.T) {
	ctx := newUnencryptedContext()

	x := xmlmodel.NewBcXml()
	x.VersionInfo = &xmlmodel.VersionInfo{Version: "1.1", Name: "cam1"}

	msg := &Message{
		Meta: Meta{MsgID: MsgIDVersion, ChannelID: 0, MsgNum: 5, ResponseCode: ResponseOK, Class: ClassModernOffset},
		Body: ModernBody{PayloadKind: PayloadXML, XML: x},
	}

	wire, err := Serialize(msg, ctx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, n, err := Parse(wire, ctx)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n != len(wire) {
		t.Fatalf("consumed %d of %d bytes", n, len(wire))
	}
	body, ok := got.Body.(ModernBody)
	if !ok {
		t.Fatalf("expected ModernBody, got %T", got.Body)
	}
	if body.PayloadKind != PayloadXML || body.XML == nil || body.XML.VersionInfo == nil {
		t.Fatalf("payload not round-tripped: %+v", body)
	}
	if body.XML.VersionInfo.Name != "cam1" {
		t.Fatalf("got name %q, want cam1", body.XML.VersionInfo.Name)
	}
}

// TestCodecRoundTripBCEncrypt is the same invariant under the BCEncrypt
// cipher, which is what login traffic actually uses.
func TestCodecRoundTripBCEncrypt(t *testing.T) {
	ctx := NewContext("admin", "password", crypto.BCEncrypt)

	x := xmlmodel.NewBcXml()
	x.LedState = &xmlmodel.LedState{Version: "1.1", State: "open"}

	msg := &Message{
		Meta: Meta{MsgID: MsgIDLedSet, ChannelID: 2, MsgNum: 9, ResponseCode: ResponseOK, Class: ClassModernOffset},
		Body: ModernBody{PayloadKind: PayloadXML, XML: x},
	}

	wire, err := Serialize(msg, ctx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, _, err := Parse(wire, ctx)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	body := got.Body.(ModernBody)
	if body.XML.LedState == nil || body.XML.LedState.State != "open" {
		t.Fatalf("LedState not round-tripped: %+v", body.XML)
	}
}

// TestLegacyLoginRoundTrip encodes spec scenario S2's body fields: a legacy
// login body with a 32-byte NUL-padded username and empty password.
func TestLegacyLoginRoundTrip(t *testing.T) {
	ctx := newUnencryptedContext()
	username := "21232F297A57A5A743894A0E4A801FC"

	msg := &Message{
		Meta: Meta{MsgID: MsgIDLogin, Class: ClassLegacy},
		Body: LegacyLogin{Username: username, Password: ""},
	}

	wire, err := Serialize(msg, ctx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, _, err := Parse(wire, ctx)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	login, ok := got.Body.(LegacyLogin)
	if !ok {
		t.Fatalf("expected LegacyLogin, got %T", got.Body)
	}
	if login.Username != username {
		t.Fatalf("username = %q, want %q", login.Username, username)
	}
	if login.Password != "" {
		t.Fatalf("password = %q, want empty", login.Password)
	}
}

// TestBinaryPromotionPersists encodes spec scenario S4 and invariant 5: once
// an extension declares binary_data=1 for a msg_num, later messages with the
// same msg_num decode as binary even without an extension.
func TestBinaryPromotionPersists(t *testing.T) {
	ctx := newUnencryptedContext()
	const msgNum = 1000

	sampleA := sampleBinaryWire(t, ctx, msgNum, true, bytes.Repeat([]byte{0xAB}, 32))
	gotA, _, err := Parse(sampleA, ctx)
	if err != nil {
		t.Fatalf("parse sample A: %v", err)
	}
	bodyA := gotA.Body.(ModernBody)
	if bodyA.PayloadKind != PayloadBinary || len(bodyA.Binary) != 32 {
		t.Fatalf("sample A not binary-32: %+v", bodyA)
	}
	if !ctx.IsBinary(msgNum) {
		t.Fatalf("msg_num %d not marked binary after extension", msgNum)
	}

	sampleB := sampleBinaryWire(t, ctx, msgNum, false, bytes.Repeat([]byte{0xCD}, 30344))
	gotB, _, err := Parse(sampleB, ctx)
	if err != nil {
		t.Fatalf("parse sample B: %v", err)
	}
	bodyB := gotB.Body.(ModernBody)
	if bodyB.PayloadKind != PayloadBinary || len(bodyB.Binary) != 30344 {
		t.Fatalf("sample B not binary-30344: got kind=%v len=%d", bodyB.PayloadKind, len(bodyB.Binary))
	}
}

// sampleBinaryWire builds a modern message whose header/extension either
// declares binary_data=1 (withExtension) or omits the extension entirely,
// with payloadLen raw bytes as payload.
func sampleBinaryWire(t *testing.T, ctx *Context, msgNum uint16, withExtension bool, payload []byte) []byte {
	t.Helper()

	h := Header{Magic: MagicLE, MsgID: MsgIDVideoStart, MsgNum: msgNum, ResponseCode: ResponseOK}
	var extBytes []byte
	if withExtension {
		ext := xmlmodel.NewBinaryExtension(0, 0)
		plain, err := xmlmodel.Marshal(ext)
		if err != nil {
			t.Fatal(err)
		}
		extBytes, err = ctx.Engine().Encrypt(uint32(h.ChannelID), plain)
		if err != nil {
			t.Fatal(err)
		}
		h.Class = ClassModernOffset
		h.PayloadOffset = uint32(len(extBytes))
	} else {
		h.Class = ClassModernNoOffset
	}
	h.BodyLen = uint32(len(extBytes) + len(payload))

	out := h.Encode()
	out = append(out, extBytes...)
	out = append(out, payload...)
	return out
}

// TestAESNeverAtLogin encodes invariant 6: even with Aes/FullAes installed,
// a msg_id==1 message is encrypted with BCEncrypt, not AES.
func TestAESNeverAtLogin(t *testing.T) {
	ctx := NewContext("admin", "1234", crypto.Aes)
	key := crypto.DeriveAESKey("1234", "noncenoncenonce12345")
	if err := ctx.InstallAESKey(key[:]); err != nil {
		t.Fatal(err)
	}

	x := xmlmodel.NewLoginUser("admin", "1234")
	msg := &Message{
		Meta: Meta{MsgID: MsgIDLogin, Class: ClassModernOffset, ResponseCode: ResponseOK},
		Body: ModernBody{PayloadKind: PayloadXML, XML: x},
	}

	wire, err := Serialize(msg, ctx)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	// Decrypting the payload bytes with BCEncrypt (not AES) must recover
	// valid XML; this proves the wire bytes were never AES-encrypted.
	h, n, err := DecodeHeader(wire)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	payload := wire[n+int(h.PayloadOffset):]
	bc := crypto.NewEngine(crypto.BCEncrypt)
	plain, err := bc.Decrypt(uint32(h.ChannelID), payload)
	if err != nil {
		t.Fatalf("bcencrypt decrypt: %v", err)
	}
	var got xmlmodel.BcXml
	if err := xmlmodel.Unmarshal(plain, &got); err != nil {
		t.Fatalf("login payload was not BCEncrypt-encoded XML: %v", err)
	}
	if got.LoginUser == nil || got.LoginUser.UserName != "admin" {
		t.Fatalf("unexpected login payload: %+v", got)
	}
}

// TestEncryptionNegotiationSelectsCipher encodes spec scenario S1: a login
// reply announcing BCEncrypt (response_code 0xdd01) parses its own payload
// with BCEncrypt regardless of the context's persistent cipher.
func TestEncryptionNegotiationSelectsCipher(t *testing.T) {
	ctx := newUnencryptedContext() // persistent cipher stays Unencrypted

	x := xmlmodel.NewBcXml()
	x.Encryption = &xmlmodel.Encryption{Version: "1.1", Nonce: "9E6D1FCB9E69846D"}
	plain, err := xmlmodel.Marshal(x)
	if err != nil {
		t.Fatal(err)
	}
	bcEngine := crypto.NewEngine(crypto.BCEncrypt)
	encrypted, err := bcEngine.Encrypt(0, plain)
	if err != nil {
		t.Fatal(err)
	}

	h := Header{
		Magic:        MagicLE,
		MsgID:        MsgIDLogin,
		ChannelID:    0,
		ResponseCode: 0xdd01,
		Class:        ClassModernOffset,
		BodyLen:      uint32(len(encrypted)),
	}
	wire := append(h.Encode(), encrypted...)

	got, _, err := Parse(wire, ctx)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Meta.MsgID != 1 || got.Meta.ResponseCode != 0xdd01 || got.Meta.Class != ClassModernOffset {
		t.Fatalf("unexpected meta: %+v", got.Meta)
	}
	body := got.Body.(ModernBody)
	enc, err := xmlmodel.FindEncryption(body.XML)
	if err != nil {
		t.Fatalf("FindEncryption: %v", err)
	}
	if enc.Nonce != "9E6D1FCB9E69846D" {
		t.Fatalf("nonce = %q, want 9E6D1FCB9E69846D", enc.Nonce)
	}
	// The context's persistent cipher must be untouched by Parse; only the
	// login handshake installs a new protocol.
	if ctx.Protocol() != crypto.Unencrypted {
		t.Fatalf("Parse must not mutate the persistent cipher, got %v", ctx.Protocol())
	}
}

func TestMalformedXMLPayloadIsReported(t *testing.T) {
	ctx := newUnencryptedContext()
	h := Header{Magic: MagicLE, MsgID: MsgIDVersion, Class: ClassModernOffset, BodyLen: 3}
	wire := append(h.Encode(), []byte("???")...)
	if _, _, err := Parse(wire, ctx); err != ErrMalformedPayload {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}
