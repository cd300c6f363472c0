// Package pushnoti implements the Reactor's optional push-notification
// fan-out (spec.md §4.11, SPEC_FULL.md §9): a token registered with a
// vendor service, and a per-camera-UID watch that only wakes for
// notifications mentioning that camera. Grounded on
// original_source/src/common/instance/pushnoti.rs's uid-filtered
// watch-of-watch pattern, adapted from a tokio watch-of-watch into this
// module's close-and-replace channel idiom.
package pushnoti

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the token lifecycle spec.md §4.11 describes: Unregistered,
// Registered(token), back to Unregistered on Unregister.
type State int

const (
	StateUnregistered State = iota
	StateRegistered
)

// Notification is one vendor push event, addressed to a camera by UID.
type Notification struct {
	UID     string
	Message string
	At      time.Time
}

type camWatch struct {
	mu    sync.RWMutex
	value Notification
	ch    chan struct{}
}

func newCamWatch() *camWatch {
	return &camWatch{ch: make(chan struct{})}
}

func (w *camWatch) set(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = n
	close(w.ch)
	w.ch = make(chan struct{})
}

func (w *camWatch) get() (Notification, <-chan struct{}) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value, w.ch
}

// Hub owns the registration state and the per-UID fan-out. The Reactor
// constructs one Hub and shares it across every NeoCam that asks for push
// notifications.
type Hub struct {
	mu       sync.Mutex
	state    State
	token    string
	watchers map[string]*camWatch
}

// NewHub builds an unregistered Hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[string]*camWatch)}
}

// Register generates a fresh token and transitions to Registered. Calling
// it again while already registered just issues a new token — vendor
// services rotate these periodically.
func (h *Hub) Register() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = uuid.NewString()
	h.state = StateRegistered
	return h.token
}

// Unregister drops the token and transitions back to Unregistered.
func (h *Hub) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = ""
	h.state = StateUnregistered
}

// State reports the current registration state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Token returns the current token, or "" if Unregistered.
func (h *Hub) Token() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

// Publish fans n out to whichever per-UID watch matches n.UID. A
// notification for a UID nobody has asked to watch yet is simply dropped —
// Watch(uid) creates the slot lazily the first time a NeoCam asks.
func (h *Hub) Publish(n Notification) {
	h.mu.Lock()
	w, ok := h.watchers[n.UID]
	h.mu.Unlock()
	if ok {
		w.set(n)
	}
}

// Watch returns the latest notification addressed to uid and a channel
// that closes the next time one arrives, creating the watch slot on first
// call.
func (h *Hub) Watch(uid string) (Notification, <-chan struct{}) {
	h.mu.Lock()
	w, ok := h.watchers[uid]
	if !ok {
		w = newCamWatch()
		h.watchers[uid] = w
	}
	h.mu.Unlock()
	return w.get()
}
