package handlers

import (
	"time"

	"CardArena/service/relay"
)

// ChatHandler relays a direct message to the recipient's live connections
// and always confirms to the sender, whether or not anyone was online.
// Offline recipients are served later by the HTTP persistence path plus
// the drain loop, not by this handler.
type ChatHandler struct{}

func NewChatHandler() relay.Handler { return &ChatHandler{} }

func (h *ChatHandler) Type() string       { return relay.TypeChatMessage }
func (h *ChatHandler) RequiresAuth() bool { return true }

func (h *ChatHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	s := ctx.S

	if f.RecipientUserID == 0 || f.MessageText == "" {
		s.Reply(conn, relay.ErrorFrame("Missing required fields"))
		return nil
	}

	env := relay.ChatEnvelope{
		Type:            relay.TypeChatMessage,
		SenderUserID:    conn.UserID(),
		RecipientUserID: f.RecipientUserID,
		MessageText:     f.MessageText,
		Timestamp:       time.Now().Unix(),
	}

	if n := s.DeliverTo(f.RecipientUserID, env); n > 0 {
		s.Receipt(env.SenderUserID, env.RecipientUserID, env.Timestamp)
	}

	s.Reply(conn, map[string]any{
		"type": relay.TypeMessageSent,
		"data": env,
	})
	return nil
}

// TypingHandler forwards typing indicators. They are non-critical, so a
// missing recipient or an unauthenticated sender drops the frame without
// any reply.
type TypingHandler struct{}

func NewTypingHandler() relay.Handler { return &TypingHandler{} }

func (h *TypingHandler) Type() string       { return relay.TypeTyping }
func (h *TypingHandler) RequiresAuth() bool { return false }

func (h *TypingHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	if !conn.Authenticated() || f.RecipientUserID == 0 {
		return nil
	}

	isTyping := true
	if f.IsTyping != nil {
		isTyping = *f.IsTyping
	}

	ctx.S.DeliverTo(f.RecipientUserID, map[string]any{
		"type":      relay.TypeTyping,
		"user_id":   conn.UserID(),
		"is_typing": isTyping,
	})
	return nil
}
