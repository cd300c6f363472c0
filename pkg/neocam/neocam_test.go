package neocam

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/bcerr"
	"github.com/nvr-core/bc/pkg/camthread"
	"github.com/nvr-core/bc/pkg/config"
	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/metrics"
	"github.com/nvr-core/bc/pkg/transport"
	"github.com/nvr-core/bc/pkg/xmlmodel"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeRPCCamera logs a client in, then answers AbilityInfo (declaring only
// "ledStatus"), LED get/set, and version get; anything else not named here
// it just ignores (lets the request time out) to exercise ability gating
// and unsupported commands.
func fakeRPCCamera(t *testing.T, ln net.Listener) {
	t.Helper()
	nc, err := ln.Accept()
	if err != nil {
		return
	}
	defer nc.Close()

	sConn := transport.NewFromConn(nc, transport.Config{})
	sCtx := bc.NewContext("", "", crypto.Unencrypted)

	probe, err := sConn.ReadMessage(sCtx)
	if err != nil {
		return
	}
	negXML := xmlmodel.NewBcXml()
	negXML.Encryption = &xmlmodel.Encryption{Nonce: "unused"}
	negReply := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDLogin, MsgNum: probe.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: 0xdd00},
		Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: negXML},
	}
	if sConn.WriteMessage(sCtx, negReply) != nil {
		return
	}
	modernLogin, err := sConn.ReadMessage(sCtx)
	if err != nil {
		return
	}
	ack := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDLogin, MsgNum: modernLogin.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: bc.ResponseOK},
		Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
	}
	if sConn.WriteMessage(sCtx, ack) != nil {
		return
	}

	reply := func(msgID uint32, msgNum uint16, x *xmlmodel.BcXml) {
		m := &bc.Message{
			Meta: bc.Meta{MsgID: msgID, MsgNum: msgNum, Class: bc.ClassModernNoOffset, ResponseCode: bc.ResponseOK},
			Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: x},
		}
		_ = sConn.WriteMessage(sCtx, m)
	}

	ledState := &xmlmodel.LedState{State: "open"}

	for {
		msg, err := sConn.ReadMessage(sCtx)
		if err != nil {
			return
		}
		switch msg.Meta.MsgID {
		case bc.MsgIDAbilityInfo:
			x := xmlmodel.NewBcXml()
			x.AbilityInfo = &xmlmodel.AbilityInfo{Token: []xmlmodel.AbilityToken{{Name: "ledStatus"}}}
			reply(bc.MsgIDAbilityInfo, msg.Meta.MsgNum, x)
		case bc.MsgIDLedGet:
			x := xmlmodel.NewBcXml()
			x.LedState = ledState
			reply(bc.MsgIDLedGet, msg.Meta.MsgNum, x)
		case bc.MsgIDLedSet:
			modern := msg.Body.(bc.ModernBody)
			ledState = modern.XML.LedState
			ack := &bc.Message{
				Meta: bc.Meta{MsgID: bc.MsgIDLedSet, MsgNum: msg.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: bc.ResponseOK},
				Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
			}
			_ = sConn.WriteMessage(sCtx, ack)
		case bc.MsgIDVersion:
			x := xmlmodel.NewBcXml()
			x.VersionInfo = &xmlmodel.VersionInfo{Name: "test-cam", FirmwareVer: "1.0.0"}
			reply(bc.MsgIDVersion, msg.Meta.MsgNum, x)
		case bc.MsgIDPing:
			pingAck := &bc.Message{
				Meta: bc.Meta{MsgID: bc.MsgIDPing, MsgNum: msg.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: bc.ResponseOK},
				Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
			}
			_ = sConn.WriteMessage(sCtx, pingAck)
		}
		// Anything else (e.g. PIR get/set) is deliberately left unanswered
		// so AbilityMissing fires before a request is even sent.
	}
}

func newConnectedNeoCam(t *testing.T) (*NeoCam, context.Context) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go fakeRPCCamera(t, ln)

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	n := New(Config{
		Camera: config.CameraConfig{
			Name: "cam1", Addresses: []string{host}, Port: port,
			Username: "admin", Password: "swordfish",
			Protocol: transport.ProtocolTCP, MaxEncryption: crypto.BCEncrypt, Enabled: true,
		},
		CamThread: camthread.Config{
			Metrics:           metrics.New(prometheus.NewRegistry()),
			KeepaliveInterval: 200 * time.Millisecond,
			WarmupDelay:       1 * time.Millisecond,
			DialTimeout:       time.Second,
		},
	})
	go n.Run(ctx)
	n.Connect()

	deadline := time.After(2 * time.Second)
	for n.State() != camthread.Connected {
		select {
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("camera never reached Connected")
		}
	}
	return n, ctx
}

func TestGetSetLedStateRoundTrips(t *testing.T) {
	n, ctx := newConnectedNeoCam(t)

	state, err := n.GetLedState(ctx)
	if err != nil {
		t.Fatalf("GetLedState: %v", err)
	}
	if state.State != "open" {
		t.Fatalf("State = %q, want open", state.State)
	}

	if err := n.SetLedState(ctx, &xmlmodel.LedState{State: "close"}); err != nil {
		t.Fatalf("SetLedState: %v", err)
	}
	state, err = n.GetLedState(ctx)
	if err != nil {
		t.Fatalf("GetLedState after set: %v", err)
	}
	if state.State != "close" {
		t.Fatalf("State after set = %q, want close", state.State)
	}
}

func TestGetVersionIsNeverAbilityGated(t *testing.T) {
	n, ctx := newConnectedNeoCam(t)
	v, err := n.GetVersion(ctx)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if v.Name != "test-cam" {
		t.Fatalf("Name = %q, want test-cam", v.Name)
	}
}

func TestUnsupportedAbilityIsRejectedLocally(t *testing.T) {
	n, ctx := newConnectedNeoCam(t)
	_, err := n.GetPirAlarm(ctx)
	var missing *bcerr.AbilityMissing
	if err == nil {
		t.Fatal("GetPirAlarm: expected AbilityMissing, got nil")
	}
	if !errors.As(err, &missing) {
		t.Fatalf("GetPirAlarm: got %v (%T), want *bcerr.AbilityMissing", err, err)
	}
}

func TestGetPermitTracksActivation(t *testing.T) {
	n, _ := newConnectedNeoCam(t)
	if n.permits.Count() != 0 {
		t.Fatalf("initial permit count = %d, want 0", n.permits.Count())
	}
	p := n.GetPermit()
	if n.permits.Count() != 1 {
		t.Fatalf("permit count after GetPermit = %d, want 1", n.permits.Count())
	}
	p.Drop()
	if n.permits.Count() != 0 {
		t.Fatalf("permit count after Drop = %d, want 0", n.permits.Count())
	}
}
