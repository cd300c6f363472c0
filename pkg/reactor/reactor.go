// Package reactor implements the Reactor (spec.md §4.11): the fleet-level
// map from camera name to NeoCam. Grounded on
// original_source/src/common/reactor.rs's NeoReactor, which owns its
// instance map from inside a single command-processing goroutine so that
// Get and UpdateConfig never race each other. That file used one mpsc
// channel carrying an enum of commands; this package instead gives each
// command its own typed channel, the same shape camthread.CamThread.Run
// already uses for Connect/Disconnect/Reconfigure.
package reactor

import (
	"context"
	"errors"
	"sync"

	"github.com/nvr-core/bc/pkg/camthread"
	"github.com/nvr-core/bc/pkg/config"
	"github.com/nvr-core/bc/pkg/discovery"
	"github.com/nvr-core/bc/pkg/metrics"
	"github.com/nvr-core/bc/pkg/neocam"
	"github.com/nvr-core/bc/pkg/pushnoti"
	"github.com/pion/logging"
)

// ErrUnknownCamera is returned by Get when name isn't present, or isn't
// enabled, in the current FleetConfig.
var ErrUnknownCamera = errors.New("reactor: camera not found in config")

// Config configures a Reactor.
type Config struct {
	Fleet config.FleetConfig

	// CamThreadDefaults seeds every NeoCam's CamThread.Config; its Camera
	// field is overwritten per-instance.
	CamThreadDefaults camthread.Config

	Metrics       *metrics.Registry
	Resolver      *discovery.Resolver
	LoggerFactory logging.LoggerFactory

	// Push is the shared push-notification hub. Nil disables push
	// notifications entirely, matching the original's cfg(feature =
	// "pushnoti") compile-time toggle as a runtime one instead.
	Push *pushnoti.Hub
}

type fleetWatch struct {
	mu    sync.RWMutex
	value config.FleetConfig
	ch    chan struct{}
}

func newFleetWatch(v config.FleetConfig) *fleetWatch {
	return &fleetWatch{value: v, ch: make(chan struct{})}
}

func (w *fleetWatch) get() (config.FleetConfig, <-chan struct{}) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value, w.ch
}

func (w *fleetWatch) set(v config.FleetConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = v
	close(w.ch)
	w.ch = make(chan struct{})
}

type getReq struct {
	name  string
	reply chan getResult
}

type getResult struct {
	cam *neocam.NeoCam
	err error
}

type updateReq struct {
	cfg   config.FleetConfig
	reply chan error
}

// Reactor owns the fleet of NeoCam instances. Run must be started in its
// own goroutine before Get or UpdateConfig are called; both block on the
// command loop that Run drives.
type Reactor struct {
	cfg   Config
	log   logging.LeveledLogger
	fleet *fleetWatch

	getCh    chan getReq
	updateCh chan updateReq
}

// New builds a Reactor seeded with cfg.Fleet. Call Run to start serving
// Get/UpdateConfig.
func New(cfg Config) *Reactor {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Reactor{
		cfg:      cfg,
		log:      cfg.LoggerFactory.NewLogger("reactor"),
		fleet:    newFleetWatch(cfg.Fleet),
		getCh:    make(chan getReq),
		updateCh: make(chan updateReq),
	}
}

// Run owns the instance map for as long as ctx is alive. Every mutation
// of r's fleet of NeoCams happens on this goroutine, so Get and
// UpdateConfig never observe a half-updated map.
func (r *Reactor) Run(ctx context.Context) {
	instances := make(map[string]*neocam.NeoCam)
	cancels := make(map[string]context.CancelFunc)

	go r.runPush(ctx)

	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-r.getCh:
			cam, ok := instances[req.name]
			if ok {
				req.reply <- getResult{cam: cam}
				continue
			}
			fleet, _ := r.fleet.get()
			camCfg, ok := fleet.Cameras[req.name]
			if !ok || !camCfg.Enabled {
				req.reply <- getResult{err: ErrUnknownCamera}
				continue
			}
			camCtx, cancel := context.WithCancel(ctx)
			cam = r.construct(camCfg)
			instances[req.name] = cam
			cancels[req.name] = cancel
			go cam.Run(camCtx)
			req.reply <- getResult{cam: cam}

		case req := <-r.updateCh:
			current, _ := r.fleet.get()
			added, removed, changed := config.DiffEnabled(current, req.cfg)
			for _, name := range removed {
				if cam, ok := instances[name]; ok {
					cam.Disconnect()
				}
				if cancel, ok := cancels[name]; ok {
					cancel()
				}
				delete(instances, name)
				delete(cancels, name)
			}
			for _, name := range changed {
				if cam, ok := instances[name]; ok {
					cam.UpdateConfig(req.cfg.Cameras[name])
				}
			}
			r.log.Debugf("reactor: config updated, %d added %d removed %d changed", len(added), len(removed), len(changed))
			r.fleet.set(req.cfg)
			req.reply <- nil
		}
	}
}

func (r *Reactor) construct(camCfg config.CameraConfig) *neocam.NeoCam {
	camThreadCfg := r.cfg.CamThreadDefaults
	camThreadCfg.Metrics = r.cfg.Metrics
	camThreadCfg.Resolver = r.cfg.Resolver
	camThreadCfg.LoggerFactory = r.cfg.LoggerFactory
	return neocam.New(neocam.Config{
		Camera:        camCfg,
		CamThread:     camThreadCfg,
		LoggerFactory: r.cfg.LoggerFactory,
	})
}

// runPush manages the shared push-notification hub's registration
// lifecycle: registered whenever at least one enabled camera wants push
// notifications, unregistered when none do. Grounded on reactor.rs's push
// notification task, which waited on the config watch for
// push_notifications to flip on or off around running the vendor client;
// this carries over the wait-for-toggle shape without a vendor
// connection to drive.
func (r *Reactor) runPush(ctx context.Context) {
	if r.cfg.Push == nil {
		return
	}
	for {
		fleet, ch := r.fleet.get()
		wantsPush := anyPushEnabled(fleet)
		switch {
		case wantsPush && r.cfg.Push.State() == pushnoti.StateUnregistered:
			r.cfg.Push.Register()
		case !wantsPush && r.cfg.Push.State() == pushnoti.StateRegistered:
			r.cfg.Push.Unregister()
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return
		}
	}
}

func anyPushEnabled(f config.FleetConfig) bool {
	for _, cam := range f.Cameras {
		if cam.Enabled && cam.PushNotifications {
			return true
		}
	}
	return false
}

// Get returns the named camera's NeoCam, constructing and starting it on
// first request if it's enabled in the current FleetConfig.
func (r *Reactor) Get(ctx context.Context, name string) (*neocam.NeoCam, error) {
	reply := make(chan getResult, 1)
	select {
	case r.getCh <- getReq{name: name, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.cam, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Config returns the current FleetConfig.
func (r *Reactor) Config() config.FleetConfig {
	v, _ := r.fleet.get()
	return v
}

// Watch returns the current FleetConfig and a channel that closes the
// next time UpdateConfig installs a new one.
func (r *Reactor) Watch() (config.FleetConfig, <-chan struct{}) {
	return r.fleet.get()
}

// UpdateConfig installs new as the fleet configuration: cameras dropped
// from or disabled in new are disconnected and removed, cameras whose
// CameraConfig changed are reconfigured in place, and cameras newly
// enabled are picked up lazily by the next Get (spec.md §4.11).
func (r *Reactor) UpdateConfig(ctx context.Context, new config.FleetConfig) error {
	reply := make(chan error, 1)
	select {
	case r.updateCh <- updateReq{cfg: new, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
