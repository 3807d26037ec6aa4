// Package coretest provides in-memory transports for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
)

// Conn is a core.SignalConnection that records every accepted frame.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	limit  int
	closed bool
}

// NewConn returns a Conn that accepts up to limit frames; limit <= 0 means
// unbounded.
func NewConn(limit int) *Conn { return &Conn{limit: limit} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.limit > 0 && len(c.frames) >= c.limit {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.frames...)
}

// Types returns the "type" field of every recorded frame.
func (c *Conn) Types() []string {
	var out []string
	for _, m := range c.Decoded() {
		t, _ := m["type"].(string)
		out = append(out, t)
	}
	return out
}

// Decoded returns every recorded frame as a generic JSON object.
func (c *Conn) Decoded() []map[string]any {
	var out []map[string]any
	for _, f := range c.Frames() {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			m = map[string]any{}
		}
		out = append(out, m)
	}
	return out
}

// Count returns how many recorded frames have the given type.
func (c *Conn) Count(typ string) int {
	n := 0
	for _, t := range c.Types() {
		if t == typ {
			n++
		}
	}
	return n
}

// Reset drops every recorded frame.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// NewSession builds a session in the Connecting state over a fresh Conn.
func NewSession(userID string, role domain.Role, room domain.RoomID) (core.MemberSession, *Conn) {
	conn := NewConn(0)
	user := &domain.User{ID: domain.UserID(userID), Username: "user " + userID, Role: role}
	return core.NewMemberSession(core.SessionID("sid-"+userID), domain.NewMember(user, room), conn), conn
}
