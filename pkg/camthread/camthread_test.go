package camthread

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/config"
	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/login"
	"github.com/nvr-core/bc/pkg/metrics"
	"github.com/nvr-core/bc/pkg/transport"
	"github.com/nvr-core/bc/pkg/xmlmodel"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeCameraServer accepts one connection, runs the login handshake
// (always negotiating Unencrypted), then answers every GeneralSet/Ping
// request with ResponseOK until the connection closes. It reports how many
// pings it answered over pings.
func fakeCameraServer(t *testing.T, ln net.Listener, loginOK bool, pings chan<- struct{}) {
	t.Helper()
	nc, err := ln.Accept()
	if err != nil {
		return
	}
	defer nc.Close()

	sConn := transport.NewFromConn(nc, transport.Config{})
	sCtx := bc.NewContext("", "", crypto.Unencrypted)

	probe, err := sConn.ReadMessage(sCtx)
	if err != nil || func() bool { _, ok := probe.Body.(bc.LegacyLogin); return !ok }() {
		return
	}
	negXML := xmlmodel.NewBcXml()
	negXML.Encryption = &xmlmodel.Encryption{Nonce: "unused"}
	negReply := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDLogin, MsgNum: probe.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: 0xdd00},
		Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: negXML},
	}
	if err := sConn.WriteMessage(sCtx, negReply); err != nil {
		return
	}

	modernLogin, err := sConn.ReadMessage(sCtx)
	if err != nil {
		return
	}
	code := bc.ResponseOK
	if !loginOK {
		code = bc.ResponseBadRequest
	}
	ack := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDLogin, MsgNum: modernLogin.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: code},
		Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
	}
	if err := sConn.WriteMessage(sCtx, ack); err != nil || !loginOK {
		return
	}

	for {
		msg, err := sConn.ReadMessage(sCtx)
		if err != nil {
			return
		}
		switch msg.Meta.MsgID {
		case bc.MsgIDPing:
			select {
			case pings <- struct{}{}:
			default:
			}
			reply := &bc.Message{
				Meta: bc.Meta{MsgID: bc.MsgIDPing, MsgNum: msg.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: bc.ResponseOK},
				Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
			}
			_ = sConn.WriteMessage(sCtx, reply)
		case bc.MsgIDGeneralSet:
			reply := &bc.Message{
				Meta: bc.Meta{MsgID: bc.MsgIDGeneralSet, MsgNum: msg.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: bc.ResponseOK},
				Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
			}
			_ = sConn.WriteMessage(sCtx, reply)
		case bc.MsgIDLogout:
			return
		}
	}
}

func testCamera(t *testing.T, ln net.Listener) config.CameraConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split listener addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return config.CameraConfig{
		Name:          "cam1",
		Addresses:     []string{host},
		Port:          port,
		Username:      "admin",
		Password:      "swordfish",
		Protocol:      transport.ProtocolTCP,
		MaxEncryption: crypto.BCEncrypt,
		UpdateTime:    true,
		Enabled:       true,
	}
}

func awaitState(t *testing.T, th *CamThread, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		s, ch := th.Watch()
		if s == want {
			return
		}
		select {
		case <-ch:
		case <-deadline:
			t.Fatalf("timed out waiting for state %v, last seen %v", want, s)
		}
	}
}

func TestRunConnectsAndKeepsAlive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	pings := make(chan struct{}, 8)
	go fakeCameraServer(t, ln, true, pings)

	th := New(Config{
		Camera:              testCamera(t, ln),
		Metrics:             metrics.New(prometheus.NewRegistry()),
		KeepaliveInterval:   20 * time.Millisecond,
		KeepaliveTimeout:    200 * time.Millisecond,
		KeepaliveMissBudget: 5,
		WarmupDelay:         5 * time.Millisecond,
		DialTimeout:         time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { th.Run(ctx); close(done) }()

	th.Connect()
	awaitState(t, th, Connected, 2*time.Second)

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("camera never received a ping")
	}

	th.Disconnect()
	awaitState(t, th, Disconnected, 2*time.Second)

	cancel()
	<-done
}

func TestRunStopsRetryingOnFatalLogin(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go fakeCameraServer(t, ln, false, make(chan struct{}, 1))

	th := New(Config{
		Camera:      testCamera(t, ln),
		Metrics:     metrics.New(prometheus.NewRegistry()),
		WarmupDelay: 5 * time.Millisecond,
		DialTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { th.Run(ctx); close(done) }()

	th.Connect()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after a fatal login failure")
	}
}

func TestSessionUnavailableWhenDisconnected(t *testing.T) {
	th := New(Config{Camera: config.CameraConfig{Name: "idle"}, Metrics: metrics.New(prometheus.NewRegistry())})
	if _, _, ok := th.Session(); ok {
		t.Fatal("Session reported live before any Connect")
	}
	if err := login.ErrCameraLoginFail; err == nil {
		t.Fatal("sanity: ErrCameraLoginFail must be non-nil")
	}
}
