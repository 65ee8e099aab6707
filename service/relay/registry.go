package relay

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNotAdmitted          = errors.New("connection not admitted")
	ErrAlreadyAuthenticated = errors.New("connection already authenticated")
)

// Registry tracks every admitted connection and the user -> connections
// multimap used for fan-out. All mutation and every read used for delivery
// go through the one RWMutex, so a remove racing a fan-out can never hand
// out a half-closed connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn           // all admitted connections, by conn id
	byUser map[int64]map[string]*Conn // authenticated only: userID -> connID -> conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Conn),
		byUser: make(map[int64]map[string]*Conn),
	}
}

// Admit registers a fresh, unauthenticated connection.
func (r *Registry) Admit(c *Conn) {
	r.mu.Lock()
	r.conns[c.ID] = c
	r.mu.Unlock()
}

// Authenticate binds c to userID. A second call on the same connection is
// rejected, not stacked; the old behavior of appending a duplicate entry
// caused double delivery.
func (r *Registry) Authenticate(c *Conn, userID int64, userCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.ID]; !ok {
		return ErrNotAdmitted
	}
	if c.Authenticated() {
		return ErrAlreadyAuthenticated
	}

	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*Conn)
	}
	r.byUser[userID][c.ID] = c
	c.setIdentity(userID, userCode)
	return nil
}

// Remove drops a connection from the flat set and, when it was
// authenticated, from its user's set. Safe to call for connections that
// never authenticated, and safe to call twice.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c.ID)
	if !c.Authenticated() {
		return
	}
	uid := c.UserID()
	if mm := r.byUser[uid]; mm != nil {
		delete(mm, c.ID)
		if len(mm) == 0 {
			delete(r.byUser, uid)
		}
	}
}

// ConnectionsFor returns a snapshot of the user's live connections; empty
// when offline.
func (r *Registry) ConnectionsFor(userID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mm := r.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
