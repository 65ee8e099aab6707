package relay

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWire records every frame written to it; drain_test.go shares it.
type fakeWire struct {
	mu         sync.Mutex
	frames     [][]byte
	closed     bool
	failWrites bool
}

func (f *fakeWire) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("broken pipe")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeWire) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWire) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeWire) sent(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, raw := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

func TestAuthenticateAndFanout(t *testing.T) {
	r := NewRegistry()
	w := &fakeWire{}
	c := NewConn("c1", w)

	r.Admit(c)
	assert.False(t, r.IsOnline(10))

	require.NoError(t, r.Authenticate(c, 10, "FRIEND-10"))
	assert.True(t, r.IsOnline(10))
	assert.True(t, c.Authenticated())
	assert.Equal(t, int64(10), c.UserID())
	assert.Equal(t, "FRIEND-10", c.UserCode())

	conns := r.ConnectionsFor(10)
	require.Len(t, conns, 1)
	assert.Same(t, c, conns[0])
}

func TestRejectReauthentication(t *testing.T) {
	r := NewRegistry()
	c := NewConn("c1", &fakeWire{})
	r.Admit(c)

	require.NoError(t, r.Authenticate(c, 10, "FRIEND-10"))
	err := r.Authenticate(c, 11, "FRIEND-11")
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)

	// No duplicate or stray entries.
	assert.Len(t, r.ConnectionsFor(10), 1)
	assert.Empty(t, r.ConnectionsFor(11))
	assert.Equal(t, int64(10), c.UserID())
}

func TestAuthenticateNotAdmitted(t *testing.T) {
	r := NewRegistry()
	c := NewConn("c1", &fakeWire{})
	assert.ErrorIs(t, r.Authenticate(c, 10, "FRIEND-10"), ErrNotAdmitted)
	assert.False(t, r.IsOnline(10))
}

func TestRemoveUnauthenticated(t *testing.T) {
	r := NewRegistry()
	c := NewConn("c1", &fakeWire{})
	r.Admit(c)
	assert.Equal(t, 1, r.Len())

	r.Remove(c)
	assert.Equal(t, 0, r.Len())

	// Removing twice is harmless.
	r.Remove(c)
}

func TestRemoveLastConnectionGoesOffline(t *testing.T) {
	r := NewRegistry()
	c := NewConn("c1", &fakeWire{})
	r.Admit(c)
	require.NoError(t, r.Authenticate(c, 10, "FRIEND-10"))

	r.Remove(c)
	assert.False(t, r.IsOnline(10))
	assert.Empty(t, r.ConnectionsFor(10))
	assert.Equal(t, 0, r.Len())
}

func TestMultipleDevices(t *testing.T) {
	r := NewRegistry()
	c1 := NewConn("c1", &fakeWire{})
	c2 := NewConn("c2", &fakeWire{})
	r.Admit(c1)
	r.Admit(c2)
	require.NoError(t, r.Authenticate(c1, 10, "FRIEND-10"))
	require.NoError(t, r.Authenticate(c2, 10, "FRIEND-10"))

	assert.Len(t, r.ConnectionsFor(10), 2)

	// Dropping one device keeps the user online.
	r.Remove(c1)
	assert.True(t, r.IsOnline(10))
	assert.Len(t, r.ConnectionsFor(10), 1)

	r.Remove(c2)
	assert.False(t, r.IsOnline(10))
}

func TestSendToClosedConn(t *testing.T) {
	w := &fakeWire{}
	c := NewConn("c1", w)
	c.Close()

	assert.Error(t, c.SendJSON(map[string]any{"type": "pong"}))
	assert.True(t, w.closed)
	assert.Empty(t, w.frames)
}
