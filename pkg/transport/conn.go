// Package transport dials and frames the byte stream a camera connection
// rides on. It knows nothing about msg_num correlation or subscriber
// routing (pkg/mux owns that) — its only job is turning a net.Conn into a
// sequence of complete bc.Message values in each direction.
package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/pion/logging"
)

// Protocol selects which L4 transport a camera connection uses. Most
// cameras speak BC over TCP; some legacy firmware only answers UDP.
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
)

func (p Protocol) network() string {
	if p == ProtocolUDP {
		return "udp"
	}
	return "tcp"
}

// Config configures a dialed Conn. The zero value is valid; Dial applies
// defaults the way the rest of this stack's Config types do.
type Config struct {
	Protocol      Protocol
	DialTimeout   time.Duration
	LoggerFactory logging.LoggerFactory
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DialTimeout == 0 {
		out.DialTimeout = 5 * time.Second
	}
	if out.LoggerFactory == nil {
		out.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return out
}

// Conn is one dialed connection to a camera. It owns the socket
// exclusively; a reader loop and a writer call ReadMessage/WriteMessage
// from at most one goroutine each, the way spec.md §5 assigns the socket
// to exactly a reader task and a writer task.
type Conn struct {
	nc  net.Conn
	r   *bufio.Reader
	log logging.LeveledLogger

	wmu    sync.Mutex
	closed bool
}

// Dial opens a connection to addr (host:port) per cfg.
func Dial(ctx context.Context, addr string, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	d := net.Dialer{Timeout: cfg.DialTimeout}
	nc, err := d.DialContext(ctx, cfg.Protocol.network(), addr)
	if err != nil {
		return nil, err
	}
	return &Conn{
		nc:  nc,
		r:   bufio.NewReaderSize(nc, 64*1024),
		log: cfg.LoggerFactory.NewLogger("transport"),
	}, nil
}

// NewFromConn wraps an already-established net.Conn, the way the rest of
// this stack lets tests and UDP listeners inject a connection instead of
// dialing one.
func NewFromConn(nc net.Conn, cfg Config) *Conn {
	cfg = cfg.withDefaults()
	return &Conn{
		nc:  nc,
		r:   bufio.NewReaderSize(nc, 64*1024),
		log: cfg.LoggerFactory.NewLogger("transport"),
	}
}

// Close shuts down the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.nc.Close()
}

// SetReadDeadline arms the next ReadMessage's timeout, used by the
// keepalive to bound how long it waits for a link-type reply.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

// RemoteAddr reports the peer address, used in log fields and error
// context.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// ReadMessage blocks until one complete BC message is framed off the
// wire, decoding it against ctx. It peeks the minimal header first and
// only peeks the extended size if the class requires a payload_offset
// field, so a connection that ends exactly after a short-header message
// isn't mistaken for truncated.
func (c *Conn) ReadMessage(ctx *bc.Context) (*bc.Message, error) {
	head, err := c.r.Peek(bc.MinHeaderSize)
	if err != nil {
		return nil, c.classifyReadErr(err)
	}

	h, hlen, err := bc.DecodeHeader(head)
	if err == bc.ErrTruncated {
		head, err = c.r.Peek(bc.MaxHeaderSize)
		if err != nil {
			return nil, c.classifyReadErr(err)
		}
		h, hlen, err = bc.DecodeHeader(head)
	}
	if err != nil {
		return nil, err
	}

	total := hlen + int(h.BodyLen)
	full, err := c.r.Peek(total)
	if err != nil {
		return nil, c.classifyReadErr(err)
	}

	msg, n, err := bc.Parse(full, ctx)
	if err != nil {
		// The framing succeeded; only the payload inside it is malformed.
		// Still discard it so the stream stays in sync for the next
		// message.
		c.r.Discard(total)
		return nil, err
	}
	c.r.Discard(n)
	return msg, nil
}

// WriteMessage serializes msg against ctx and writes it atomically. The
// write lock also guards Close, so a write racing a shutdown fails
// cleanly with ErrClosed rather than panicking on a closed fd.
func (c *Conn) WriteMessage(ctx *bc.Context, msg *bc.Message) error {
	wire, err := bc.Serialize(msg, ctx)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, err := c.nc.Write(wire); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

func (c *Conn) classifyReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ErrDroppedConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeoutDisconnected
	}
	return err
}

func classifyWriteErr(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return ErrDroppedConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeoutDisconnected
	}
	return errors.Join(ErrSendFailed, err)
}
