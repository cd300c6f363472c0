// Package mux implements the SubscriptionMux (spec.md §4.5): a single
// reader task that demultiplexes inbound BC messages to per-(msg_id,
// msg_num) subscribers, and a throttled send path shared by everyone who
// wants to write to the connection.
package mux

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/transport"
	"github.com/pion/logging"
	"golang.org/x/time/rate"
)

// Key identifies a subscriber: a message ID and the msg_num the camera is
// expected to echo back. Unsolicited messages (motion, battery push,
// keepalive-adjacent pushes) arrive on the well-known MsgNum 0 channel.
type Key struct {
	MsgID  uint32
	MsgNum uint16
}

// subscriberQueueDepth bounds each subscriber's inbox (spec.md §4.5's
// Backpressure rule).
const subscriberQueueDepth = 100

// Config configures a Mux. The zero value is valid; New applies defaults.
type Config struct {
	// RateLimit and Burst bound the outbound send path so a runaway caller
	// can't starve the keepalive ping. Generous by default — this is
	// ambient resilience, not a protocol requirement.
	RateLimit     rate.Limit
	Burst         int
	LoggerFactory logging.LoggerFactory
}

const (
	defaultRateLimit = rate.Limit(50) // sends/sec
	defaultBurst     = 20
)

func (c Config) withDefaults() Config {
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst == 0 {
		c.Burst = defaultBurst
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return c
}

type slot struct {
	ch chan *bc.Message
}

// Mux owns one connection's reader loop and send throttling. Callers
// subscribe before sending a request, exactly as spec.md §4.5 requires, to
// avoid racing the reply.
type Mux struct {
	conn *transport.Conn
	bctx *bc.Context
	log  logging.LeveledLogger

	limiter *rate.Limiter

	mu          sync.Mutex
	slots       map[Key]*slot
	shutdownErr error

	nextMsgNum uint32 // masked to uint16 on read; monotonic counter
}

// New builds a Mux bound to conn. The caller must call Run in its own
// goroutine to start dispatching.
func New(conn *transport.Conn, bctx *bc.Context, cfg Config) *Mux {
	cfg = cfg.withDefaults()
	return &Mux{
		conn:       conn,
		bctx:       bctx,
		log:        cfg.LoggerFactory.NewLogger("mux"),
		limiter:    rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		slots:      make(map[Key]*slot),
		nextMsgNum: 1, // 0 is reserved for well-known/unsolicited channels
	}
}

// NextMsgNum returns the next correlation id for an outgoing request,
// wrapping modulo 2^16 per spec.md §4.5.
func (m *Mux) NextMsgNum() uint16 {
	n := atomic.AddUint32(&m.nextMsgNum, 1) - 1
	v := uint16(n)
	if v == 0 {
		// Skip the wrap back to the reserved well-known value.
		n = atomic.AddUint32(&m.nextMsgNum, 1) - 1
		v = uint16(n)
	}
	return v
}

// Subscribe registers a subscriber for key before a request using that key
// is sent, so the reply can never race the subscription.
func (m *Mux) Subscribe(key Key) *Subscription {
	s := &slot{ch: make(chan *bc.Message, subscriberQueueDepth)}

	m.mu.Lock()
	shutdownErr := m.shutdownErr
	if shutdownErr == nil {
		m.slots[key] = s
	}
	m.mu.Unlock()

	if shutdownErr != nil {
		close(s.ch)
	}
	return &Subscription{mux: m, key: key, slot: s}
}

// SubscribeUnsolicited registers for msgID's well-known MsgNum-0 channel —
// motion events, battery push, and similar camera-initiated messages.
func (m *Mux) SubscribeUnsolicited(msgID uint32) *Subscription {
	return m.Subscribe(Key{MsgID: msgID, MsgNum: 0})
}

func (m *Mux) unsubscribe(key Key, s *slot) {
	m.mu.Lock()
	removed := m.slots[key] == s
	if removed {
		delete(m.slots, key)
	}
	m.mu.Unlock()
	if removed {
		close(s.ch)
	}
}

// Send throttles and writes msg. ctx governs the rate limiter wait, not
// the write itself (the write is a single non-blocking syscall in
// practice).
func (m *Mux) Send(ctx context.Context, msg *bc.Message) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	return m.conn.WriteMessage(m.bctx, msg)
}

// Run drives the reader loop until ctx is cancelled or the transport
// fails. On return every subscriber's channel is closed and Recv reports
// the returned error. Callers run this in a
// dedicated goroutine per spec.md §5's "one reader task per socket".
//
// A codec error (bad magic, truncated frame, malformed payload) is fatal
// only to the message that produced it: spec.md §7 classes these as
// per-message, and transport.Conn has already discarded the bad frame's
// bytes to keep framing in sync, so the loop just logs and reads the next
// message. Anything else — a dropped connection, a read timeout — ends
// the session.
func (m *Mux) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			m.shutdown(err)
			return err
		}

		msg, err := m.conn.ReadMessage(m.bctx)
		if err != nil {
			if isCodecError(err) {
				m.log.Warnf("mux: dropping malformed message: %v", err)
				continue
			}
			m.shutdown(err)
			return err
		}
		m.dispatch(msg)
	}
}

func isCodecError(err error) bool {
	return errors.Is(err, bc.ErrBadMagic) || errors.Is(err, bc.ErrTruncated) || errors.Is(err, bc.ErrMalformedPayload)
}

func (m *Mux) dispatch(msg *bc.Message) {
	key := Key{MsgID: msg.Meta.MsgID, MsgNum: msg.Meta.MsgNum}

	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s, ok = m.slots[Key{MsgID: msg.Meta.MsgID, MsgNum: 0}]
	}
	m.mu.Unlock()
	if !ok {
		m.log.Debugf("mux: no subscriber for msg_id=%d msg_num=%d, dropping", msg.Meta.MsgID, msg.Meta.MsgNum)
		return
	}

	select {
	case s.ch <- msg:
	default:
		// Backpressure: the subscriber isn't draining. Drop it rather than
		// block the single reader task forever (spec.md §4.5).
		m.log.Warnf("mux: slow consumer on msg_id=%d msg_num=%d, dropping subscriber", key.MsgID, key.MsgNum)
		m.dropSlow(key, s)
	}
}

func (m *Mux) dropSlow(key Key, s *slot) {
	m.mu.Lock()
	if m.slots[key] == s {
		delete(m.slots, key)
	}
	m.mu.Unlock()
	close(s.ch)
}

func (m *Mux) shutdown(err error) {
	if err == nil {
		err = ErrDroppedConnection
	}
	m.mu.Lock()
	if m.shutdownErr != nil {
		m.mu.Unlock()
		return
	}
	m.shutdownErr = err
	slots := m.slots
	m.slots = make(map[Key]*slot)
	m.mu.Unlock()

	for _, s := range slots {
		close(s.ch)
	}
}

// Subscription is a live registration for one (msg_id, msg_num) pair.
type Subscription struct {
	mux  *Mux
	key  Key
	slot *slot
}

// Recv waits for the next message on this subscription. Once Run has
// stopped it returns the error the mux shut down with (the transport's
// error, such as transport.ErrDroppedConnection, or Run's context error),
// or ctx.Err() if ctx is cancelled first. A plain (nil, nil) return means the subscription
// was dropped for being slow or was explicitly closed — spec.md §4.5
// treats that as an internal condition, not a surfaced error.
func (s *Subscription) Recv(ctx context.Context) (*bc.Message, error) {
	select {
	case msg, ok := <-s.slot.ch:
		if !ok {
			s.mux.mu.Lock()
			err := s.mux.shutdownErr
			s.mux.mu.Unlock()
			return nil, err
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes, releasing the slot. Safe to call more than once.
func (s *Subscription) Close() {
	s.mux.unsubscribe(s.key, s.slot)
}
