// Package login implements the LoginHandshake (spec.md §4.6): the legacy
// probe that learns which cipher the camera requires, the optional AES key
// derivation, and the modern login that actually authenticates.
package login

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/mux"
	"github.com/nvr-core/bc/pkg/xmlmodel"
)

// SetterReplyPatience is how long a command that mutates camera state
// (LED, email, users, ...) waits for an acknowledgement; neocam's setter
// RPCs treat silence past it as success. CamThread also uses it to bound
// its update_time push and its logout. spec.md's scenarios never pin an exact figure
// for this; 500ms is long enough for the slowest firmware observed to
// still answer a setter RPC without stalling CamThread's keepalive loop.
const SetterReplyPatience = 500 * time.Millisecond

const legacyUsernameFieldLen = 31

// legacyUsernameHash is the MD5/hex/upper-case/truncated username the
// legacy probe sends; the camera never sees real credentials at this
// step, only enough to provoke an Encryption announcement.
func legacyUsernameHash(username string) string {
	sum := md5.Sum([]byte(username))
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	return h[:legacyUsernameFieldLen]
}

// Perform runs the full handshake over m, mutating bctx's cipher and
// (if AES is required) installed key as it goes. On success bctx is ready
// for ordinary command traffic.
func Perform(ctx context.Context, bctx *bc.Context, m *mux.Mux) error {
	if err := legacyProbe(ctx, bctx, m); err != nil {
		return err
	}
	return modernLogin(ctx, bctx, m)
}

func legacyProbe(ctx context.Context, bctx *bc.Context, m *mux.Mux) error {
	msgNum := m.NextMsgNum()
	sub := m.Subscribe(mux.Key{MsgID: bc.MsgIDLogin, MsgNum: msgNum})
	defer sub.Close()

	req := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDLogin, MsgNum: msgNum, Class: bc.ClassLegacy},
		Body: bc.LegacyLogin{Username: legacyUsernameHash(bctx.Username), Password: ""},
	}
	if err := m.Send(ctx, req); err != nil {
		return err
	}

	reply, err := sub.Recv(ctx)
	if err != nil {
		return err
	}

	modern, ok := reply.Body.(bc.ModernBody)
	if !ok || modern.XML == nil {
		return &UnintelligibleReply{Reply: "legacy-probe", Why: "expected a modern XML reply"}
	}
	enc, err := xmlmodel.FindEncryption(modern.XML)
	if err != nil {
		return &UnintelligibleReply{Reply: "legacy-probe", Why: err.Error()}
	}

	if !reply.Meta.ResponseCode.IsEncryptionNegotiation() {
		return &UnintelligibleReply{Reply: "legacy-probe", Why: "response_code did not announce a cipher"}
	}

	switch low := reply.Meta.ResponseCode.LowByte(); low {
	case 0x00:
		bctx.SetProtocol(crypto.Unencrypted)
	case 0x03:
		if enc.Nonce == "" {
			return &UnintelligibleReply{Reply: "legacy-probe", Why: "AES required but no nonce present"}
		}
		key := crypto.DeriveAESKey(bctx.Password, enc.Nonce)
		if err := bctx.InstallAESKey(key[:]); err != nil {
			return err
		}
		bctx.SetProtocol(crypto.Aes)
	default:
		// Any other non-zero low byte (e.g. 0x01, 0x02) is a BCEncrypt
		// announcement, the same generalization
		// selectInboundPayloadEngine applies per-message.
		bctx.SetProtocol(crypto.BCEncrypt)
	}
	return nil
}

func modernLogin(ctx context.Context, bctx *bc.Context, m *mux.Mux) error {
	msgNum := m.NextMsgNum()
	sub := m.Subscribe(mux.Key{MsgID: bc.MsgIDLogin, MsgNum: msgNum})
	defer sub.Close()

	req := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDLogin, MsgNum: msgNum, Class: bc.ClassModernOffset},
		Body: bc.ModernBody{
			PayloadKind: bc.PayloadXML,
			XML:         xmlmodel.NewLoginUser(bctx.Username, bctx.Password),
		},
	}
	if err := m.Send(ctx, req); err != nil {
		return err
	}

	reply, err := sub.Recv(ctx)
	if err != nil {
		return err
	}
	if reply.Meta.ResponseCode != bc.ResponseOK {
		return ErrCameraLoginFail
	}
	return nil
}
