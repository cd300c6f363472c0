// Package camthread implements CamThread (spec.md §4.7): the per-camera
// supervisor that owns one dial/login/keepalive session, reconnecting with
// backoff on transient failure and surfacing fatal errors (bad credentials)
// without retrying them forever.
package camthread

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/config"
	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/discovery"
	"github.com/nvr-core/bc/pkg/login"
	"github.com/nvr-core/bc/pkg/metrics"
	"github.com/nvr-core/bc/pkg/mux"
	"github.com/nvr-core/bc/pkg/transport"
	"github.com/nvr-core/bc/pkg/xmlmodel"
	"github.com/pion/logging"
)

// ErrNoCandidate is returned when neither a static address nor discovery
// produces somewhere to dial.
var ErrNoCandidate = errors.New("camthread: no address to dial")

// Config configures a CamThread. The zero value is invalid; Camera must be
// set. withDefaults fills everything else.
type Config struct {
	Camera        config.CameraConfig
	LoggerFactory logging.LoggerFactory
	Metrics       *metrics.Registry
	Resolver      *discovery.Resolver

	KeepaliveInterval   time.Duration
	KeepaliveTimeout    time.Duration
	KeepaliveMissBudget int
	WarmupDelay         time.Duration
	DialTimeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = 5 * time.Second
	}
	if c.KeepaliveTimeout == 0 {
		c.KeepaliveTimeout = 5 * time.Second
	}
	if c.KeepaliveMissBudget == 0 {
		c.KeepaliveMissBudget = 5
	}
	if c.WarmupDelay == 0 {
		c.WarmupDelay = 2 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return c
}

// CamThread owns one camera's connection lifecycle. Construct with New and
// drive it with Run in its own goroutine; Connect/Disconnect/Reconfigure
// are safe to call concurrently from a NeoCam.
type CamThread struct {
	cfg Config
	log logging.LeveledLogger
	bo  *backoff.ExponentialBackOff

	state *stateWatch

	mu     sync.RWMutex
	camera config.CameraConfig

	// live session, valid only between a successful login and the session
	// ending; guarded by mu.
	bctx *bc.Context
	mx   *mux.Mux
	conn *transport.Conn

	connectReq  chan struct{}
	disconnect  chan struct{}
	reconfigure chan config.CameraConfig
}

// New builds a CamThread for cfg.Camera. It starts Disconnected and idle —
// Run blocks until Connect is called.
func New(cfg Config) *CamThread {
	cfg = cfg.withDefaults()
	return &CamThread{
		cfg:         cfg,
		log:         cfg.LoggerFactory.NewLogger("camthread:" + cfg.Camera.Name),
		bo:          NewBackoff(),
		state:       newStateWatch(Disconnected),
		camera:      cfg.Camera,
		connectReq:  make(chan struct{}, 1),
		disconnect:  make(chan struct{}, 1),
		reconfigure: make(chan config.CameraConfig, 1),
	}
}

// State reports the current lifecycle state.
func (t *CamThread) State() State { return t.state.Get() }

// Watch returns the current state and a channel that closes on the next
// transition, the same pattern pkg/permit uses for acquire/drop edges.
func (t *CamThread) Watch() (State, <-chan struct{}) { return t.state.Watch() }

// Connect requests the supervisor dial and log in if it is currently idle.
// A no-op if already connected or connecting.
func (t *CamThread) Connect() {
	select {
	case t.connectReq <- struct{}{}:
	default:
	}
}

// Disconnect requests a best-effort logout and teardown of the current
// session. The supervisor then goes idle until Connect is called again.
func (t *CamThread) Disconnect() {
	select {
	case t.disconnect <- struct{}{}:
	default:
	}
}

// Reconfigure installs newCfg for the next (re)connect attempt. If a
// session is live it is torn down so the new config takes effect
// immediately, matching the Reactor's update_config expectations
// (spec.md §4.11).
func (t *CamThread) Reconfigure(newCfg config.CameraConfig) {
	select {
	case t.reconfigure <- newCfg:
	default:
		select {
		case <-t.reconfigure:
		default:
		}
		t.reconfigure <- newCfg
	}
}

// Session returns the live bc.Context and Mux for sending commands, and
// whether a session is actually up. NeoCam holds onto neither across a
// reconnect — it calls Session again each time it needs to talk to the
// camera.
func (t *CamThread) Session() (*bc.Context, *mux.Mux, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bctx, t.mx, t.mx != nil
}

func (t *CamThread) currentCamera() config.CameraConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.camera
}

// ConfigSnapshot returns the camera config currently in effect.
func (t *CamThread) ConfigSnapshot() config.CameraConfig { return t.currentCamera() }

// Run drives the connect/serve/backoff loop until ctx is cancelled or a
// fatal error (bad credentials) ends it for good.
func (t *CamThread) Run(ctx context.Context) {
	defer t.state.Set(Disconnected)

	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case newCfg := <-t.reconfigure:
			t.mu.Lock()
			t.camera = newCfg
			t.mu.Unlock()
			continue
		case <-t.connectReq:
		}

		if err := t.serveUntilIdle(ctx); err != nil {
			if errors.Is(err, login.ErrCameraLoginFail) {
				t.log.Errorf("%s: fatal login failure, giving up: %v", t.currentCamera().Name, err)
				return
			}
		}
	}
}

// serveUntilIdle retries runSession with backoff until the session ends
// deliberately (ErrDisconnectRequested), ctx is cancelled, or a fatal error
// surfaces.
func (t *CamThread) serveUntilIdle(ctx context.Context) error {
	for {
		t.state.Set(Connecting)
		t.cfg.Metrics.IncReconnect(t.currentCamera().Name)

		start := time.Now()
		err := t.runSession(ctx)
		lived := time.Since(start)

		t.state.Set(Disconnected)

		if err == nil || errors.Is(err, ErrDisconnectRequested) {
			return nil
		}
		if errors.Is(err, login.ErrCameraLoginFail) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t.log.Warnf("%s: session ended (%v), reconnecting", t.currentCamera().Name, err)
		if lived >= sessionResetThreshold {
			t.bo.Reset()
		}
		wait := t.bo.NextBackOff()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		case <-t.disconnect:
			return nil
		case newCfg := <-t.reconfigure:
			t.mu.Lock()
			t.camera = newCfg
			t.mu.Unlock()
		}
	}
}

// runSession dials, logs in, and serves one connection until it ends. The
// returned error classifies why: ErrDisconnectRequested (deliberate),
// login.ErrCameraLoginFail (fatal), or anything else (transient, retry).
func (t *CamThread) runSession(ctx context.Context) error {
	cam := t.currentCamera()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr, err := t.resolveAddr(sessionCtx, cam)
	if err != nil {
		return err
	}

	conn, err := transport.Dial(sessionCtx, addr, transport.Config{
		Protocol:      cam.Protocol,
		DialTimeout:   t.cfg.DialTimeout,
		LoggerFactory: t.cfg.LoggerFactory,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	bctx := bc.NewContext(cam.Username, cam.Password, crypto.Unencrypted)
	m := mux.New(conn, bctx, mux.Config{LoggerFactory: t.cfg.LoggerFactory})

	muxDone := make(chan error, 1)
	go func() { muxDone <- m.Run(sessionCtx) }()

	if err := login.Perform(sessionCtx, bctx, m); err != nil {
		return err
	}
	if bctx.Protocol() > cam.MaxEncryption {
		return fmt.Errorf("camthread: camera negotiated %s, above configured ceiling %s", bctx.Protocol(), cam.MaxEncryption)
	}

	t.mu.Lock()
	t.bctx, t.mx, t.conn = bctx, m, conn
	t.mu.Unlock()
	t.state.Set(Connected)
	defer func() {
		t.mu.Lock()
		t.bctx, t.mx, t.conn = nil, nil, nil
		t.mu.Unlock()
	}()

	if err := t.warmup(sessionCtx, cam, m); err != nil {
		select {
		case muxErr := <-muxDone:
			return muxErr
		default:
			return err
		}
	}

	return t.keepaliveLoop(sessionCtx, cam, m, muxDone)
}

func (t *CamThread) resolveAddr(ctx context.Context, cam config.CameraConfig) (string, error) {
	if cam.Discovery == config.DiscoveryMDNS && t.cfg.Resolver != nil {
		cand, err := t.cfg.Resolver.Lookup(ctx, cam.UID)
		if err == nil {
			return net.JoinHostPort(cand.Host, strconv.Itoa(cand.Port)), nil
		}
		t.log.Warnf("%s: mdns lookup failed (%v), falling back to static addresses", cam.Name, err)
	}
	if len(cam.Addresses) == 0 {
		return "", ErrNoCandidate
	}
	return net.JoinHostPort(cam.Addresses[0], strconv.Itoa(cam.Port)), nil
}

// warmup gives the camera two 2-second grace periods the way spec.md §4.7
// describes — the camera's own session bookkeeping on some firmware isn't
// ready to answer feature RPCs for a moment right after login — with an
// optional update_time push between them.
func (t *CamThread) warmup(ctx context.Context, cam config.CameraConfig, m *mux.Mux) error {
	if err := sleepCtx(ctx, t.cfg.WarmupDelay); err != nil {
		return err
	}
	if cam.UpdateTime {
		if err := t.pushSystemTime(ctx, m); err != nil {
			t.log.Warnf("%s: update_time failed (non-fatal): %v", cam.Name, err)
		}
	}
	return sleepCtx(ctx, t.cfg.WarmupDelay)
}

func (t *CamThread) pushSystemTime(ctx context.Context, m *mux.Mux) error {
	msgNum := m.NextMsgNum()
	sub := m.Subscribe(mux.Key{MsgID: bc.MsgIDGeneralSet, MsgNum: msgNum})
	defer sub.Close()

	req := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDGeneralSet, MsgNum: msgNum, Class: bc.ClassModernOffset},
		Body: bc.ModernBody{PayloadKind: bc.PayloadXML, XML: xmlmodel.NewSystemTime(time.Now())},
	}
	if err := m.Send(ctx, req); err != nil {
		return err
	}
	setCtx, cancel := context.WithTimeout(ctx, login.SetterReplyPatience)
	defer cancel()
	reply, err := sub.Recv(setCtx)
	if err != nil {
		return err
	}
	if reply.Meta.ResponseCode != bc.ResponseOK {
		return fmt.Errorf("camthread: update_time rejected, response_code=%d", reply.Meta.ResponseCode)
	}
	return nil
}

// keepaliveLoop pings the camera periodically so NAT/firewall state and the
// camera's own idle-timeout stay open (spec.md §4.7). After
// cfg.KeepaliveMissBudget consecutive unanswered pings the session is
// considered dead; an ill-formed (but present) reply just disables further
// pings for the rest of this session rather than killing it.
func (t *CamThread) keepaliveLoop(ctx context.Context, cam config.CameraConfig, m *mux.Mux, muxDone <-chan error) error {
	ticker := time.NewTicker(t.cfg.KeepaliveInterval)
	defer ticker.Stop()

	misses := 0
	pingDisabled := false

	for {
		select {
		case <-ctx.Done():
			t.logout(context.Background(), m)
			return ErrDisconnectRequested
		case err := <-muxDone:
			return err
		case <-t.disconnect:
			t.logout(ctx, m)
			return ErrDisconnectRequested
		case newCfg := <-t.reconfigure:
			t.mu.Lock()
			t.camera = newCfg
			t.mu.Unlock()
			t.logout(ctx, m)
			return ErrDisconnectRequested
		case <-ticker.C:
			if pingDisabled {
				continue
			}
			ok, unintelligible, err := t.ping(ctx, m)
			if err != nil {
				return err
			}
			if unintelligible {
				t.log.Warnf("%s: camera sent an unintelligible ping reply, disabling future pings this session", cam.Name)
				pingDisabled = true
				continue
			}
			if ok {
				misses = 0
				continue
			}
			misses++
			t.cfg.Metrics.IncKeepaliveMiss(cam.Name)
			if misses >= t.cfg.KeepaliveMissBudget {
				return transport.ErrTimeoutDisconnected
			}
		}
	}
}

// ping sends one keepalive and classifies the outcome: (true, false, nil)
// on a clean reply, (false, false, nil) on a timeout (counts as a miss),
// (_, true, nil) on a reply that didn't look like a ping reply at all.
func (t *CamThread) ping(ctx context.Context, m *mux.Mux) (ok, unintelligible bool, err error) {
	msgNum := m.NextMsgNum()
	sub := m.Subscribe(mux.Key{MsgID: bc.MsgIDPing, MsgNum: msgNum})
	defer sub.Close()

	req := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDPing, MsgNum: msgNum, Class: bc.ClassModernOffset},
		Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
	}
	if sendErr := m.Send(ctx, req); sendErr != nil {
		return false, false, sendErr
	}

	pingCtx, cancel := context.WithTimeout(ctx, t.cfg.KeepaliveTimeout)
	defer cancel()
	reply, recvErr := sub.Recv(pingCtx)
	if recvErr != nil {
		if errors.Is(recvErr, context.DeadlineExceeded) {
			return false, false, nil
		}
		return false, false, recvErr
	}
	if _, ok := reply.Body.(bc.ModernBody); !ok {
		return false, true, nil
	}
	return reply.Meta.ResponseCode == bc.ResponseOK, false, nil
}

// logout moves the state to Disconnecting and makes one best-effort
// attempt to tell the camera we're leaving. Its outcome is never surfaced
// — the connection is about to close either way.
func (t *CamThread) logout(ctx context.Context, m *mux.Mux) {
	t.state.Set(Disconnecting)
	logoutCtx, cancel := context.WithTimeout(ctx, login.SetterReplyPatience)
	defer cancel()

	msgNum := m.NextMsgNum()
	req := &bc.Message{
		Meta: bc.Meta{MsgID: bc.MsgIDLogout, MsgNum: msgNum, Class: bc.ClassModernOffset},
		Body: bc.ModernBody{PayloadKind: bc.PayloadNone},
	}
	_ = m.Send(logoutCtx, req)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
