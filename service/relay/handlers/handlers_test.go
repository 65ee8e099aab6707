package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usermodel "CardArena/module/user/model"
	"CardArena/service/relay"
)

type fakeWire struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeWire) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeWire) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeWire) Close() error                     { return nil }

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

type fakeVerifier struct {
	users map[string]*usermodel.User
}

func (f *fakeVerifier) Verify(_ context.Context, credential string) (*usermodel.User, error) {
	if u, ok := f.users[credential]; ok {
		return u, nil
	}
	return nil, errors.New("credential rejected")
}

func newTestServer(verifier relay.TokenVerifier) *relay.Server {
	disp := relay.NewDispatcher()
	RegisterAll(disp)
	return relay.NewServer("gw-test", relay.Deps{
		Registry:   relay.NewRegistry(),
		Dispatcher: disp,
		Verifier:   verifier,
	})
}

// connect admits a fresh unauthenticated connection.
func connect(s *relay.Server, id string) (*relay.Conn, *fakeWire) {
	w := &fakeWire{}
	c := relay.NewConn(id, w)
	s.Reg().Admit(c)
	return c, w
}

// connectAs admits and authenticates in one step.
func connectAs(t *testing.T, s *relay.Server, id string, userID int64, code string) (*relay.Conn, *fakeWire) {
	t.Helper()
	c, w := connect(s, id)
	require.NoError(t, s.Reg().Authenticate(c, userID, code))
	return c, w
}

func send(s *relay.Server, c *relay.Conn, frame map[string]any) {
	raw, _ := json.Marshal(frame)
	s.Dispatch(c, raw)
}

func TestMalformedFrame(t *testing.T) {
	s := newTestServer(nil)
	c, w := connect(s, "c1")

	s.Dispatch(c, []byte("{not json"))
	frames := w.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeError, frames[0]["type"])
	assert.Equal(t, "Invalid message format", frames[0]["message"])
}

func TestMissingType(t *testing.T) {
	s := newTestServer(nil)
	c, w := connect(s, "c1")

	send(s, c, map[string]any{"message_text": "hi"})
	frames := w.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeError, frames[0]["type"])
}

func TestUnknownType(t *testing.T) {
	s := newTestServer(nil)

	// Same answer regardless of auth state.
	unauth, w1 := connect(s, "c1")
	send(s, unauth, map[string]any{"type": "self_destruct"})

	authed, w2 := connectAs(t, s, "c2", 1, "FRIEND-1")
	send(s, authed, map[string]any{"type": "self_destruct"})

	for _, w := range []*fakeWire{w1, w2} {
		frames := w.sent(t)
		require.Len(t, frames, 1)
		assert.Equal(t, relay.TypeError, frames[0]["type"])
		assert.Equal(t, "Unknown message type", frames[0]["message"])
	}
}

func TestPingNeedsNoAuth(t *testing.T) {
	s := newTestServer(nil)
	c, w := connect(s, "c1")

	send(s, c, map[string]any{"type": relay.TypePing})
	frames := w.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypePong, frames[0]["type"])
}

func TestAuthenticateSuccess(t *testing.T) {
	v := &fakeVerifier{users: map[string]*usermodel.User{
		"good-token": {ID: 7, UserCode: "FRIEND-7", IsActive: true},
	}}
	s := newTestServer(v)
	c, w := connect(s, "c1")

	send(s, c, map[string]any{"type": relay.TypeAuthenticate, "auth_token": "good-token"})
	frames := w.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeAuthenticated, frames[0]["type"])
	assert.Equal(t, float64(7), frames[0]["user_id"])
	assert.Equal(t, "FRIEND-7", frames[0]["user_code"])

	assert.True(t, c.Authenticated())
	assert.True(t, s.Reg().IsOnline(7))
}

func TestAuthenticateFailureAllowsRetry(t *testing.T) {
	v := &fakeVerifier{users: map[string]*usermodel.User{
		"good-token": {ID: 7, UserCode: "FRIEND-7", IsActive: true},
	}}
	s := newTestServer(v)
	c, w := connect(s, "c1")

	send(s, c, map[string]any{"type": relay.TypeAuthenticate, "auth_token": "bad-token"})
	frames := w.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeAuthError, frames[0]["type"])
	assert.False(t, c.Authenticated())

	// Connection stayed open; a second attempt succeeds.
	send(s, c, map[string]any{"type": relay.TypeAuthenticate, "auth_token": "good-token"})
	frames = w.sent(t)
	require.Len(t, frames, 2)
	assert.Equal(t, relay.TypeAuthenticated, frames[1]["type"])
}

func TestReauthenticateRejected(t *testing.T) {
	v := &fakeVerifier{users: map[string]*usermodel.User{
		"good-token": {ID: 7, UserCode: "FRIEND-7", IsActive: true},
	}}
	s := newTestServer(v)
	c, w := connect(s, "c1")

	send(s, c, map[string]any{"type": relay.TypeAuthenticate, "auth_token": "good-token"})
	send(s, c, map[string]any{"type": relay.TypeAuthenticate, "auth_token": "good-token"})

	frames := w.sent(t)
	require.Len(t, frames, 2)
	assert.Equal(t, relay.TypeAuthError, frames[1]["type"])
	// Still exactly one registry entry.
	assert.Len(t, s.Reg().ConnectionsFor(7), 1)
}

func TestChatRequiresAuth(t *testing.T) {
	s := newTestServer(nil)
	c, w := connect(s, "c1")

	send(s, c, map[string]any{"type": relay.TypeChatMessage, "recipient_user_id": 2, "message_text": "hi"})
	frames := w.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeError, frames[0]["type"])
	assert.Equal(t, "Not authenticated", frames[0]["message"])
}

func TestChatMissingFields(t *testing.T) {
	s := newTestServer(nil)
	c, w := connectAs(t, s, "c1", 1, "FRIEND-1")

	send(s, c, map[string]any{"type": relay.TypeChatMessage, "recipient_user_id": 2})
	send(s, c, map[string]any{"type": relay.TypeChatMessage, "message_text": "hi"})

	frames := w.sent(t)
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Equal(t, relay.TypeError, f["type"])
		assert.Equal(t, "Missing required fields", f["message"])
	}
}

func TestChatOfflineRecipientStillConfirmed(t *testing.T) {
	s := newTestServer(nil)
	c, w := connectAs(t, s, "c1", 1, "FRIEND-1")

	send(s, c, map[string]any{"type": relay.TypeChatMessage, "recipient_user_id": 2, "message_text": "anyone there?"})

	frames := w.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeMessageSent, frames[0]["type"])
	data := frames[0]["data"].(map[string]any)
	assert.Equal(t, "anyone there?", data["message_text"])
	assert.Equal(t, float64(1), data["sender_user_id"])
}

func TestChatFanoutToAllDevices(t *testing.T) {
	s := newTestServer(nil)
	sender, sw := connectAs(t, s, "c1", 1, "FRIEND-1")
	_, d1 := connectAs(t, s, "c2", 2, "FRIEND-2")
	_, d2 := connectAs(t, s, "c3", 2, "FRIEND-2")

	send(s, sender, map[string]any{"type": relay.TypeChatMessage, "recipient_user_id": 2, "message_text": "hi"})

	for _, w := range []*fakeWire{d1, d2} {
		frames := w.sent(t)
		require.Len(t, frames, 1)
		assert.Equal(t, relay.TypeChatMessage, frames[0]["type"])
		assert.Equal(t, "hi", frames[0]["message_text"])
	}

	// Exactly one confirmation to the sender.
	frames := sw.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeMessageSent, frames[0]["type"])
}

func TestTypingDropsSilently(t *testing.T) {
	s := newTestServer(nil)

	// Unauthenticated: no reply, no error.
	unauth, w1 := connect(s, "c1")
	send(s, unauth, map[string]any{"type": relay.TypeTyping, "recipient_user_id": 2})
	assert.Empty(t, w1.sent(t))

	// Authenticated but missing recipient: same.
	authed, w2 := connectAs(t, s, "c2", 1, "FRIEND-1")
	send(s, authed, map[string]any{"type": relay.TypeTyping})
	assert.Empty(t, w2.sent(t))

	// Offline recipient: delivered nowhere, confirmed nowhere.
	send(s, authed, map[string]any{"type": relay.TypeTyping, "recipient_user_id": 99})
	assert.Empty(t, w2.sent(t))
}

func TestTypingDelivery(t *testing.T) {
	s := newTestServer(nil)
	sender, sw := connectAs(t, s, "c1", 1, "FRIEND-1")
	_, rw := connectAs(t, s, "c2", 2, "FRIEND-2")

	send(s, sender, map[string]any{"type": relay.TypeTyping, "recipient_user_id": 2})
	frames := rw.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeTyping, frames[0]["type"])
	assert.Equal(t, float64(1), frames[0]["user_id"])
	assert.Equal(t, true, frames[0]["is_typing"]) // defaults true

	send(s, sender, map[string]any{"type": relay.TypeTyping, "recipient_user_id": 2, "is_typing": false})
	frames = rw.sent(t)
	require.Len(t, frames, 2)
	assert.Equal(t, false, frames[1]["is_typing"])

	assert.Empty(t, sw.sent(t))
}

func TestBattleInvitationForward(t *testing.T) {
	s := newTestServer(nil)
	sender, sw := connectAs(t, s, "c1", 1, "FRIEND-1")
	_, rw := connectAs(t, s, "c2", 2, "FRIEND-2")

	send(s, sender, map[string]any{
		"type":              relay.TypeBattleInvitationSent,
		"recipient_user_id": 2,
		"invitation":        map[string]any{"id": 55, "wager": 100},
	})

	frames := rw.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeBattleInvitation, frames[0]["type"])
	assert.Equal(t, float64(1), frames[0]["sender_user_id"])
	inv := frames[0]["invitation"].(map[string]any)
	assert.Equal(t, float64(55), inv["id"])

	// Invitations carry no confirmation echo.
	assert.Empty(t, sw.sent(t))
}

func TestBattleResponseGoesToInviter(t *testing.T) {
	s := newTestServer(nil)
	responder, _ := connectAs(t, s, "c1", 2, "FRIEND-2")
	_, iw := connectAs(t, s, "c2", 1, "FRIEND-1")

	send(s, responder, map[string]any{
		"type":           relay.TypeBattleInvitationResponse,
		"sender_user_id": 1,
		"response":       "accepted",
		"invitation_id":  55,
	})

	frames := iw.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeBattleInvitationResponse, frames[0]["type"])
	assert.Equal(t, "accepted", frames[0]["response"])
	assert.Equal(t, float64(2), frames[0]["responder_user_id"])
	assert.Equal(t, float64(55), frames[0]["invitation_id"])
}

func TestBattleCancelForward(t *testing.T) {
	s := newTestServer(nil)
	sender, _ := connectAs(t, s, "c1", 1, "FRIEND-1")
	_, rw := connectAs(t, s, "c2", 2, "FRIEND-2")

	send(s, sender, map[string]any{
		"type":              relay.TypeBattleInvitationCancel,
		"recipient_user_id": 2,
		"invitation_id":     55,
	})

	frames := rw.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeBattleInvitationCancel, frames[0]["type"])
	assert.Equal(t, float64(1), frames[0]["cancelled_by_user_id"])
}

func TestBattleStartedEchoesConfirmed(t *testing.T) {
	s := newTestServer(nil)
	sender, sw := connectAs(t, s, "c1", 1, "FRIEND-1")
	_, ow := connectAs(t, s, "c2", 2, "FRIEND-2")

	send(s, sender, map[string]any{
		"type":             relay.TypeBattleStarted,
		"opponent_user_id": 2,
		"battle_id":        901,
	})

	frames := ow.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeBattleStarted, frames[0]["type"])
	assert.Equal(t, float64(901), frames[0]["battle_id"])
	assert.Equal(t, float64(1), frames[0]["opponent_user_id"])
	assert.Equal(t, float64(1), frames[0]["battle_mode"]) // defaults to 1

	echo := sw.sent(t)
	require.Len(t, echo, 1)
	assert.Equal(t, "confirmed", echo[0]["status"])
}

func TestBattleStartedConfirmedEvenIfOpponentOffline(t *testing.T) {
	s := newTestServer(nil)
	sender, sw := connectAs(t, s, "c1", 1, "FRIEND-1")

	send(s, sender, map[string]any{
		"type":             relay.TypeBattleStarted,
		"opponent_user_id": 2,
		"battle_id":        901,
	})

	echo := sw.sent(t)
	require.Len(t, echo, 1)
	assert.Equal(t, relay.TypeBattleStarted, echo[0]["type"])
	assert.Equal(t, "confirmed", echo[0]["status"])
}

func TestBattlePhaseUpdateNoEcho(t *testing.T) {
	s := newTestServer(nil)
	sender, sw := connectAs(t, s, "c1", 1, "FRIEND-1")
	_, ow := connectAs(t, s, "c2", 2, "FRIEND-2")

	send(s, sender, map[string]any{
		"type":             relay.TypeBattlePhaseUpdate,
		"opponent_user_id": 2,
		"battle_id":        901,
		"phase":            3,
		"player_card":      map[string]any{"card_id": 12},
		"phase_winner":     1,
	})

	frames := ow.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, float64(3), frames[0]["phase"])
	card := frames[0]["player_card"].(map[string]any)
	assert.Equal(t, float64(12), card["card_id"])
	assert.Equal(t, float64(1), frames[0]["phase_winner"])
	_, hasOpp := frames[0]["opponent_card"]
	assert.False(t, hasOpp)

	assert.Empty(t, sw.sent(t))
}

func TestBattleEndedDefaultsAndEcho(t *testing.T) {
	s := newTestServer(nil)
	sender, sw := connectAs(t, s, "c1", 1, "FRIEND-1")
	_, ow := connectAs(t, s, "c2", 2, "FRIEND-2")

	send(s, sender, map[string]any{
		"type":             relay.TypeBattleEnded,
		"opponent_user_id": 2,
		"battle_id":        901,
		"winner_user_id":   1,
	})

	frames := ow.sent(t)
	require.Len(t, frames, 1)
	assert.Equal(t, relay.TypeBattleEnded, frames[0]["type"])
	assert.Equal(t, float64(1), frames[0]["winner_user_id"])
	assert.Equal(t, float64(0), frames[0]["player_wins"])
	assert.Equal(t, float64(0), frames[0]["opponent_wins"])

	echo := sw.sent(t)
	require.Len(t, echo, 1)
	assert.Equal(t, "confirmed", echo[0]["status"])
}

func TestBattleRequiresAuth(t *testing.T) {
	s := newTestServer(nil)
	c, w := connect(s, "c1")

	for _, typ := range []string{
		relay.TypeBattleInvitationSent,
		relay.TypeBattleInvitationResponse,
		relay.TypeBattleInvitationCancel,
		relay.TypeBattleStarted,
		relay.TypeBattlePhaseUpdate,
		relay.TypeBattleEnded,
	} {
		send(s, c, map[string]any{"type": typ})
	}

	frames := w.sent(t)
	require.Len(t, frames, 6)
	for _, f := range frames {
		assert.Equal(t, relay.TypeError, f["type"])
		assert.Equal(t, "Not authenticated", f["message"])
	}
}
