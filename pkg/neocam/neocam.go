// Package neocam implements NeoCam (spec.md §4.10): the per-camera façade
// that owns a CamThread, a lazily-created MdThread, and the typed command
// helpers (LED, users, email, battery, version, PIR) a caller actually
// wants instead of raw BC messages. Grounded on
// original_source/src/common/instance.rs's NeoInstance (the
// camera_control command channel and its typed RPC wrappers) and
// original_source/crates/core/src/bc_protocol/{services,users,email,
// ledstate,version}.rs for the individual command shapes.
package neocam

import (
	"context"
	"errors"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/bcerr"
	"github.com/nvr-core/bc/pkg/camthread"
	"github.com/nvr-core/bc/pkg/config"
	"github.com/nvr-core/bc/pkg/login"
	"github.com/nvr-core/bc/pkg/mdthread"
	"github.com/nvr-core/bc/pkg/mux"
	"github.com/nvr-core/bc/pkg/permit"
	"github.com/nvr-core/bc/pkg/transport"
	"github.com/nvr-core/bc/pkg/xmlmodel"
	"github.com/pion/logging"
)

// getRPCAttempts and getRPCInterval implement spec.md §5's get_* retry
// policy: up to five attempts, 500ms apart, on response_code 400.
const (
	getRPCAttempts = 5
	getRPCInterval = 500 * time.Millisecond
)

// NeoCam is the per-camera façade a Reactor hands out. It owns its
// CamThread and MdThread exclusively (spec.md §3's ownership note);
// callers only ever see this type, never the CamThread underneath.
type NeoCam struct {
	name string
	cam  *camthread.CamThread
	md   *mdthread.Thread
	log  logging.LeveledLogger

	// permits counts the activations handed out by GetPermit. Nothing in
	// this package reads the count: Stream, Motion and the command helpers
	// run whether or not any permit is held.
	permits *permit.Counter

	abilities *abilityCache
}

// Config configures a NeoCam.
type Config struct {
	Camera        config.CameraConfig
	CamThread     camthread.Config
	LoggerFactory logging.LoggerFactory
}

// New builds a NeoCam and its CamThread. The caller must run Run in its own
// goroutine before any command does useful work.
func New(cfg Config) *NeoCam {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	camCfg := cfg.CamThread
	camCfg.Camera = cfg.Camera
	camCfg.LoggerFactory = cfg.LoggerFactory
	cam := camthread.New(camCfg)
	return &NeoCam{
		name:      cfg.Camera.Name,
		cam:       cam,
		log:       cfg.LoggerFactory.NewLogger("neocam:" + cfg.Camera.Name),
		permits:   permit.NewDeactivated(),
		abilities: newAbilityCache(),
	}
}

// Run drives the underlying CamThread until ctx is cancelled.
func (n *NeoCam) Run(ctx context.Context) { n.cam.Run(ctx) }

// GetUid returns the camera's UID. If the config already has one, that's
// authoritative; otherwise it's fetched from the camera.
func (n *NeoCam) GetUid(ctx context.Context) (string, error) {
	if uid := n.cam.ConfigSnapshot().UID; uid != "" {
		return uid, nil
	}
	reply, err := n.getRPC(ctx, bc.MsgIDUID, xmlmodel.NewBcXml())
	if err != nil {
		return "", err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.UIDInfo == nil {
		return "", &login.UnintelligibleReply{Reply: "get-uid", Why: "no UIDInfo in reply"}
	}
	return modern.XML.UIDInfo.UID, nil
}

// Config returns the camera's current configuration.
func (n *NeoCam) Config() config.CameraConfig { return n.cam.ConfigSnapshot() }

// UpdateConfig installs a changed configuration, reconnecting if needed
// (spec.md §4.11's per-camera half of update_config).
func (n *NeoCam) UpdateConfig(cfg config.CameraConfig) { n.cam.Reconfigure(cfg) }

// Connect requests the CamThread dial and log in.
func (n *NeoCam) Connect() { n.cam.Connect() }

// Disconnect requests a best-effort logout and teardown.
func (n *NeoCam) Disconnect() { n.cam.Disconnect() }

// State reports the CamThread's current lifecycle state.
func (n *NeoCam) State() camthread.State { return n.cam.State() }

// Motion returns a motion-state watch, creating the MdThread lazily on
// first call (spec.md §4.9).
func (n *NeoCam) Motion(ctx context.Context) (mdthread.State, <-chan struct{}) {
	if n.md == nil {
		n.md = mdthread.New(n.cam, nil)
	}
	return n.md.Watch(ctx)
}

// GetPermit activates the shared use-counter, returning a Permit the
// caller must Drop when it no longer needs the connection kept alive
// (spec.md §4.8).
func (n *NeoCam) GetPermit() *permit.Permit { return n.permits.Activate() }

// RunTask runs fn against whatever the currently-live session is: it waits
// for a session, and when fn fails with a session loss it waits for the
// next session and runs fn again. It is the typed-wrapper-free escape
// hatch; the Get/Set helpers below are built on it.
func (n *NeoCam) RunTask(ctx context.Context, fn func(*bc.Context, *mux.Mux) error) error {
	for {
		bctx, m, ok := n.cam.Session()
		if !ok {
			if err := n.awaitConnected(ctx); err != nil {
				return err
			}
			continue
		}
		err := fn(bctx, m)
		if err == nil {
			return nil
		}
		if !isRetryableSessionLoss(err) {
			return err
		}
		n.log.Debugf("%s: session lost mid-task (%v), waiting for reconnect", n.name, err)
		if err := n.awaitConnected(ctx); err != nil {
			return err
		}
	}
}

func (n *NeoCam) awaitConnected(ctx context.Context) error {
	for {
		state, ch := n.cam.Watch()
		if state == camthread.Connected {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isRetryableSessionLoss(err error) bool {
	return errors.Is(err, mux.ErrDroppedConnection) || errors.Is(err, context.Canceled) ||
		errors.Is(err, transport.ErrDroppedConnection) ||
		errors.Is(err, transport.ErrTimeoutDisconnected) ||
		errors.Is(err, transport.ErrSendFailed)
}

// getRPC sends a get_* request and retries spec.md §5's way: up to five
// attempts, 500ms apart, whenever the camera answers 400 (transient) — and
// waits out a session loss before retrying rather than failing outright.
func (n *NeoCam) getRPC(ctx context.Context, msgID uint32, body *xmlmodel.BcXml) (*bc.Message, error) {
	var reply *bc.Message
	var lastCode bc.ResponseCode
	for attempt := 0; attempt < getRPCAttempts; attempt++ {
		err := n.RunTask(ctx, func(bctx *bc.Context, m *mux.Mux) error {
			r, sendErr := sendAndRecv(ctx, m, msgID, body)
			if sendErr != nil {
				return sendErr
			}
			reply = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		if reply.Meta.ResponseCode == bc.ResponseOK {
			return reply, nil
		}
		lastCode = reply.Meta.ResponseCode
		if reply.Meta.ResponseCode != bc.ResponseBadRequest {
			return nil, &bcerr.CameraServiceUnavailable{MsgID: msgID, Code: uint16(reply.Meta.ResponseCode)}
		}
		if err := sleepCtx(ctx, getRPCInterval); err != nil {
			return nil, err
		}
	}
	return nil, &bcerr.CameraServiceUnavailable{MsgID: msgID, Code: uint16(lastCode)}
}

// setRPC sends a set_* request and waits login.SetterReplyPatience for an
// ack; silence after that is treated as success, since some firmwares
// never acknowledge a setter (spec.md §5/§7).
func (n *NeoCam) setRPC(ctx context.Context, msgID uint32, body *xmlmodel.BcXml) error {
	return n.RunTask(ctx, func(bctx *bc.Context, m *mux.Mux) error {
		msgNum := m.NextMsgNum()
		sub := m.Subscribe(mux.Key{MsgID: msgID, MsgNum: msgNum})
		defer sub.Close()

		req := &bc.Message{
			Meta: bc.Meta{MsgID: msgID, MsgNum: msgNum, Class: bc.ClassModernOffset},
			Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: body},
		}
		if err := m.Send(ctx, req); err != nil {
			return err
		}
		setCtx, cancel := context.WithTimeout(ctx, login.SetterReplyPatience)
		defer cancel()
		reply, err := sub.Recv(setCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if reply.Meta.ResponseCode != bc.ResponseOK {
			return &bcerr.CameraServiceUnavailable{MsgID: msgID, Code: uint16(reply.Meta.ResponseCode)}
		}
		return nil
	})
}

func sendAndRecv(ctx context.Context, m *mux.Mux, msgID uint32, body *xmlmodel.BcXml) (*bc.Message, error) {
	msgNum := m.NextMsgNum()
	sub := m.Subscribe(mux.Key{MsgID: msgID, MsgNum: msgNum})
	defer sub.Close()

	req := &bc.Message{
		Meta: bc.Meta{MsgID: msgID, MsgNum: msgNum, Class: bc.ClassModernOffset},
		Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: body},
	}
	if err := m.Send(ctx, req); err != nil {
		return nil, err
	}
	return sub.Recv(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
