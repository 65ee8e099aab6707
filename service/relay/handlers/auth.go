package handlers

import (
	"context"
	"time"

	"CardArena/logger"
	"CardArena/service/relay"
)

const verifyTimeout = 2 * time.Second

// AuthHandler runs the token verifier against the authenticate frame and
// binds the connection to the resolved user. Failure leaves the connection
// open and unauthenticated so the client may retry.
type AuthHandler struct{}

func NewAuthHandler() relay.Handler { return &AuthHandler{} }

func (h *AuthHandler) Type() string       { return relay.TypeAuthenticate }
func (h *AuthHandler) RequiresAuth() bool { return false }

func (h *AuthHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	s := ctx.S

	if conn.Authenticated() {
		s.Reply(conn, relay.AuthErrorFrame("Already authenticated"))
		return nil
	}
	if f.AuthToken == "" {
		s.Reply(conn, relay.AuthErrorFrame("Missing auth_token"))
		return nil
	}

	vctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	user, err := s.Verifier().Verify(vctx, f.AuthToken)
	cancel()
	if err != nil {
		logger.Infof("[auth] verify conn=%s err=%v", conn.ID, err)
		s.Reply(conn, relay.AuthErrorFrame("Authentication failed"))
		return nil
	}

	if err := s.Reg().Authenticate(conn, user.ID, user.UserCode); err != nil {
		s.Reply(conn, relay.AuthErrorFrame("Authentication failed"))
		return err
	}

	s.Reply(conn, map[string]any{
		"type":      relay.TypeAuthenticated,
		"user_id":   user.ID,
		"user_code": user.UserCode,
	})

	octx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	s.MarkOnline(octx, user.UserCode)
	cancel()

	logger.Infof("[auth] conn=%s bound user=%d", conn.ID, user.ID)
	return nil
}
