package reactor

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/camthread"
	"github.com/nvr-core/bc/pkg/config"
	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/transport"
	"github.com/nvr-core/bc/pkg/xmlmodel"
)

// fakeLoginCamera answers just enough to let login.Perform succeed, then
// keeps acking pings until the listener closes.
func fakeLoginCamera(t *testing.T, ln net.Listener) {
	t.Helper()
	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
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
			for {
				msg, err := sConn.ReadMessage(sCtx)
				if err != nil {
					return
				}
				if msg.Meta.MsgID == bc.MsgIDPing {
					pingAck := &bc.Message{
						Meta: bc.Meta{MsgID: bc.MsgIDPing, MsgNum: msg.Meta.MsgNum, Class: bc.ClassModernNoOffset, ResponseCode: bc.ResponseOK},
						Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
					}
					_ = sConn.WriteMessage(sCtx, pingAck)
				}
			}
		}()
	}
}

func testCameraConfig(t *testing.T, name string) config.CameraConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go fakeLoginCamera(t, ln)

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return config.CameraConfig{
		Name: name, Addresses: []string{host}, Port: port,
		Username: "admin", Password: "swordfish",
		Protocol: transport.ProtocolTCP, MaxEncryption: crypto.BCEncrypt, Enabled: true,
	}
}

func newTestReactor(t *testing.T, fleet config.FleetConfig) (*Reactor, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := New(Config{
		Fleet: fleet,
		CamThreadDefaults: camthread.Config{
			KeepaliveInterval: 200 * time.Millisecond,
			WarmupDelay:       1 * time.Millisecond,
			DialTimeout:       time.Second,
		},
	})
	go r.Run(ctx)
	return r, ctx
}

func TestGetConstructsAndConnectsEnabledCamera(t *testing.T) {
	cam1 := testCameraConfig(t, "cam1")
	r, ctx := newTestReactor(t, config.FleetConfig{Cameras: map[string]config.CameraConfig{"cam1": cam1}})

	cam, err := r.Get(ctx, "cam1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cam.Connect()

	deadline := time.After(2 * time.Second)
	for cam.State() != camthread.Connected {
		select {
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("camera never reached Connected")
		}
	}

	again, err := r.Get(ctx, "cam1")
	if err != nil {
		t.Fatalf("Get (second): %v", err)
	}
	if again != cam {
		t.Fatal("Get returned a different instance for the same name")
	}
}

func TestGetUnknownCameraFails(t *testing.T) {
	r, ctx := newTestReactor(t, config.FleetConfig{})
	if _, err := r.Get(ctx, "ghost"); err != ErrUnknownCamera {
		t.Fatalf("Get(ghost) = %v, want ErrUnknownCamera", err)
	}
}

func TestUpdateConfigDropsRemovedCamera(t *testing.T) {
	cam1 := testCameraConfig(t, "cam1")
	r, ctx := newTestReactor(t, config.FleetConfig{Cameras: map[string]config.CameraConfig{"cam1": cam1}})

	if _, err := r.Get(ctx, "cam1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := r.UpdateConfig(ctx, config.FleetConfig{}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	if _, err := r.Get(ctx, "cam1"); err != ErrUnknownCamera {
		t.Fatalf("Get after removal = %v, want ErrUnknownCamera", err)
	}
}

func TestWatchObservesConfigChange(t *testing.T) {
	r, ctx := newTestReactor(t, config.FleetConfig{})
	_, ch := r.Watch()
	cam1 := testCameraConfig(t, "cam1")

	done := make(chan struct{})
	go func() {
		if err := r.UpdateConfig(ctx, config.FleetConfig{Cameras: map[string]config.CameraConfig{
			"cam1": cam1,
		}}); err != nil {
			t.Errorf("UpdateConfig: %v", err)
		}
		close(done)
	}()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch channel never fired after UpdateConfig")
	}
	<-done

	fleet := r.Config()
	if _, ok := fleet.Cameras["cam1"]; !ok {
		t.Fatal("Config() does not reflect the updated fleet")
	}
}
