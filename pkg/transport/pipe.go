package transport

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures network behavior simulation for a Pipe, for
// exercising the reconnect/retry paths in camthread and mux against
// something worse than a perfect loopback socket.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64

	// DelayMin/DelayMax bound an additional per-packet delay, uniformly
	// distributed between them.
	DelayMin time.Duration
	DelayMax time.Duration
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background
	// goroutine. DefaultPipeConfig turns it on; the zero value leaves it
	// off, and packets then move only on Tick.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for queued
	// packets. Default: 1ms.
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{AutoProcess: true, ProcessInterval: time.Millisecond}
}

// Pipe is a bidirectional in-memory connection pair built on pion's
// test.Bridge, with optional packet drop/delay simulation layered on top.
// Tests use it in place of net.Pipe when they need ReadMessage/WriteMessage
// to see a connection that occasionally drops or delays a packet, the way
// a camera on a flaky Wi-Fi link would.
type Pipe struct {
	bridge *test.Bridge

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a bidirectional pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(cfg PipeConfig) *Pipe {
	if cfg.ProcessInterval == 0 {
		cfg.ProcessInterval = time.Millisecond
	}
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(1)),
		autoProcess:     cfg.AutoProcess,
		processInterval: cfg.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.tickWithCondition()
			}
		}
	}()
}

// tickWithCondition delivers one packet in each direction, honoring
// DropRate/DelayMin/DelayMax before handing it to the bridge.
func (p *Pipe) tickWithCondition() {
	p.mu.RLock()
	cond := p.condition
	p.mu.RUnlock()

	if cond.DropRate > 0 && p.rng.Float64() < cond.DropRate {
		return
	}
	if cond.DelayMax > cond.DelayMin && cond.DelayMax > 0 {
		d := cond.DelayMin + time.Duration(p.rng.Int63n(int64(cond.DelayMax-cond.DelayMin)))
		time.Sleep(d)
	}
	p.bridge.Tick()
}

// SetCondition configures network condition simulation for both
// directions of the pipe.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Conn0 returns the connection for endpoint 0.
func (p *Pipe) Conn0() net.Conn { return p.bridge.GetConn0() }

// Conn1 returns the connection for endpoint 1.
func (p *Pipe) Conn1() net.Conn { return p.bridge.GetConn1() }

// Tick delivers one queued packet in each direction, if available.
func (p *Pipe) Tick() int { return p.bridge.Tick() }

// Close stops the auto-process goroutine, if running.
func (p *Pipe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
		p.wg.Wait()
	}
}
