package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const writeWait = 5 * time.Second

// Wire is the write side of a live connection. *websocket.Conn satisfies
// it; tests substitute a recorder.
type Wire interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn is the registry's handle for one live connection. The identity
// fields are set exactly once, by a successful authenticate, and never
// change afterwards.
type Conn struct {
	ID string

	mu       sync.Mutex
	w        Wire
	userID   int64
	userCode string
	authed   bool
	closed   bool
}

func NewConn(id string, w Wire) *Conn {
	return &Conn{ID: id, w: w}
}

func (c *Conn) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

func (c *Conn) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) UserCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userCode
}

func (c *Conn) setIdentity(userID int64, userCode string) {
	c.mu.Lock()
	c.userID = userID
	c.userCode = userCode
	c.authed = true
	c.mu.Unlock()
}

// SendJSON serializes v and writes it as one text frame. gorilla allows a
// single concurrent writer, so the conn mutex is held for the whole write.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal frame")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	if err := c.w.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	return c.w.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.w.Close()
}
