// Package mdthread implements MdThread (spec.md §4.9): a long-lived
// subscription to a camera's motion events that translates the firmware's
// Start/Stop/NoChange deltas into a watch of MdState, restarting itself
// after a transient failure. Grounded on
// original_source/src/common/mdthread.rs's watch-channel-plus-restart-loop
// shape, adapted to this module's camthread.CamThread session lifecycle
// instead of a passive-task runner.
package mdthread

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/camthread"
	"github.com/nvr-core/bc/pkg/xmlmodel"
	"github.com/pion/logging"
)

// errNoSession is returned internally when the camera isn't connected at
// the moment a listen attempt starts; the run loop treats it exactly like
// any other transient failure.
var errNoSession = errors.New("mdthread: no live session")

// Status is the motion state's discriminant, matching spec.md §4.9's
// MdState ∈ {Start(t), Stop(t), Unknown}.
type Status int

const (
	StatusUnknown Status = iota
	StatusStart
	StatusStop
)

func (s Status) String() string {
	switch s {
	case StatusStart:
		return "start"
	case StatusStop:
		return "stop"
	default:
		return "unknown"
	}
}

// State is one motion observation: a status and the time it was observed.
type State struct {
	Status Status
	At     time.Time
}

// restartCooldown is spec.md §4.9's "auto-restarts on transient failure
// (1 s cool-down)".
const restartCooldown = 1 * time.Second

type watch struct {
	mu    sync.RWMutex
	state State
	ch    chan struct{}
}

func newWatch() *watch {
	return &watch{state: State{Status: StatusUnknown}, ch: make(chan struct{})}
}

func (w *watch) Get() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *watch) set(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
	close(w.ch)
	w.ch = make(chan struct{})
}

func (w *watch) Watch() (State, <-chan struct{}) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state, w.ch
}

// Thread is one camera's motion subscription. Construct with New; the
// background loop only actually starts on the first call to Watch, so a
// NeoCam that nobody asks about motion never opens the subscription
// (spec.md §4.9's "created lazily on first request").
type Thread struct {
	cam *camthread.CamThread
	log logging.LeveledLogger

	watch *watch
	once  sync.Once
}

// New builds a Thread bound to cam. It does nothing until Watch is called.
func New(cam *camthread.CamThread, loggerFactory logging.LoggerFactory) *Thread {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Thread{
		cam:   cam,
		log:   loggerFactory.NewLogger("mdthread"),
		watch: newWatch(),
	}
}

// Watch returns the current motion state and a channel that closes on the
// next change, starting the background subscription loop on first call.
// ctx bounds the loop's lifetime; callers normally pass the same context
// the owning NeoCam runs under.
func (t *Thread) Watch(ctx context.Context) (State, <-chan struct{}) {
	t.once.Do(func() { go t.run(ctx) })
	return t.watch.Watch()
}

func (t *Thread) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		state, stateCh := t.cam.Watch()
		if state != camthread.Connected {
			select {
			case <-stateCh:
				continue
			case <-ctx.Done():
				return
			}
		}

		if err := t.listen(ctx); err != nil {
			t.log.Debugf("mdthread: %v, restarting in %s", err, restartCooldown)
		}

		select {
		case <-time.After(restartCooldown):
		case <-ctx.Done():
			return
		}
	}
}

func (t *Thread) listen(ctx context.Context) error {
	_, m, ok := t.cam.Session()
	if !ok {
		return errNoSession
	}

	sub := m.SubscribeUnsolicited(bc.MsgIDMotionReport)
	defer sub.Close()

	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		modern, ok := msg.Body.(bc.ModernBody)
		if !ok || modern.XML == nil || modern.XML.AlarmEventList == nil {
			continue
		}
		now := time.Now()
		for _, ev := range modern.XML.AlarmEventList.Events {
			switch ev.Classify() {
			case xmlmodel.MotionStart:
				t.watch.set(State{Status: StatusStart, At: now})
			case xmlmodel.MotionStop:
				t.watch.set(State{Status: StatusStop, At: now})
			}
		}
	}
}
