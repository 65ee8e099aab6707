package handlers

import (
	"CardArena/service/relay"
)

// PingHandler answers immediately; no authentication required.
type PingHandler struct{}

func NewPingHandler() relay.Handler { return &PingHandler{} }

func (h *PingHandler) Type() string       { return relay.TypePing }
func (h *PingHandler) RequiresAuth() bool { return false }

func (h *PingHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	ctx.S.Reply(conn, map[string]any{"type": relay.TypePong})
	return nil
}

// RegisterAll wires every frame handler into the dispatcher.
func RegisterAll(d *relay.Dispatcher) {
	d.Register(NewAuthHandler())
	d.Register(NewChatHandler())
	d.Register(NewTypingHandler())
	d.Register(NewBattleInvitationHandler())
	d.Register(NewBattleResponseHandler())
	d.Register(NewBattleCancelHandler())
	d.Register(NewBattleStartedHandler())
	d.Register(NewBattlePhaseHandler())
	d.Register(NewBattleEndedHandler())
	d.Register(NewPingHandler())
}
