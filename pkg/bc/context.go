package bc

import (
	"sync"

	"github.com/nvr-core/bc/pkg/crypto"
)

// Context is the per-connection mutable state the codec parses and
// serializes against (spec.md §3's BcContext). It is created at connect,
// mutated by the login handshake and by the parser when an extension marks
// a msg_num binary, and discarded on session close.
//
// Per spec.md §5, the binary-mode set is mutated only by the reader task;
// every other task observes it read-only, and the cipher is swapped under
// exclusive access only during the handshake. The mutex here exists to
// make that contract safe rather than to allow concurrent writers.
type Context struct {
	Username string
	Password string

	mu         sync.RWMutex
	engine     *crypto.Engine
	binaryMode map[uint16]struct{}
	debug      bool
}

// NewContext creates a context starting on the given protocol (normally
// Unencrypted or BCEncrypt — login never starts on AES).
func NewContext(username, password string, proto crypto.Protocol) *Context {
	return &Context{
		Username:   username,
		Password:   password,
		engine:     crypto.NewEngine(proto),
		binaryMode: make(map[uint16]struct{}),
	}
}

// SetDebug sets the debug flag reported by Debug. It is off by default; the
// codec in this package does no logging of its own and never reads it.
func (c *Context) SetDebug(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = v
}

// Debug reports whether verbose logging is enabled.
func (c *Context) Debug() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.debug
}

// Engine returns the active cipher engine.
func (c *Context) Engine() *crypto.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// SetProtocol installs a new cipher, exclusively, during the login
// handshake.
func (c *Context) SetProtocol(p crypto.Protocol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetProtocol(p)
}

// InstallAESKey installs the AES key derived from password+nonce.
func (c *Context) InstallAESKey(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.InstallAESKey(key)
}

// Protocol reports the active cipher.
func (c *Context) Protocol() crypto.Protocol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine.Protocol()
}

// MarkBinary adds msg_num to the binary-mode set. Called by the reader
// task when an extension declares binary continuation.
func (c *Context) MarkBinary(msgNum uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binaryMode[msgNum] = struct{}{}
}

// UnmarkBinary removes msg_num from the binary-mode set. Nothing in this
// module calls it, so a msg_num that MarkBinary promoted stays binary for
// the rest of the session.
func (c *Context) UnmarkBinary(msgNum uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.binaryMode, msgNum)
}

// IsBinary reports whether msg_num is currently in binary-mode.
func (c *Context) IsBinary(msgNum uint16) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.binaryMode[msgNum]
	return ok
}
