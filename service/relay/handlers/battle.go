package handlers

import (
	"CardArena/service/relay"
)

// The battle handlers forward reshaped envelopes to the opposite party's
// live connections. Only battle_started and battle_ended echo a confirmed
// status back to the sender; invitations and phase updates do not.

type BattleInvitationHandler struct{}

func NewBattleInvitationHandler() relay.Handler { return &BattleInvitationHandler{} }

func (h *BattleInvitationHandler) Type() string       { return relay.TypeBattleInvitationSent }
func (h *BattleInvitationHandler) RequiresAuth() bool { return true }

func (h *BattleInvitationHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	if f.RecipientUserID == 0 || len(f.Invitation) == 0 {
		ctx.S.Reply(conn, relay.ErrorFrame("Missing required fields"))
		return nil
	}
	ctx.S.DeliverTo(f.RecipientUserID, map[string]any{
		"type":           relay.TypeBattleInvitation,
		"invitation":     f.Invitation,
		"sender_user_id": conn.UserID(),
	})
	return nil
}

type BattleResponseHandler struct{}

func NewBattleResponseHandler() relay.Handler { return &BattleResponseHandler{} }

func (h *BattleResponseHandler) Type() string       { return relay.TypeBattleInvitationResponse }
func (h *BattleResponseHandler) RequiresAuth() bool { return true }

func (h *BattleResponseHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	// sender_user_id is the original inviter, the party to notify.
	if f.SenderUserID == 0 || f.Response == "" || f.InvitationID == 0 {
		ctx.S.Reply(conn, relay.ErrorFrame("Missing required fields"))
		return nil
	}
	ctx.S.DeliverTo(f.SenderUserID, map[string]any{
		"type":              relay.TypeBattleInvitationResponse,
		"invitation_id":     f.InvitationID,
		"response":          f.Response,
		"responder_user_id": conn.UserID(),
	})
	return nil
}

type BattleCancelHandler struct{}

func NewBattleCancelHandler() relay.Handler { return &BattleCancelHandler{} }

func (h *BattleCancelHandler) Type() string       { return relay.TypeBattleInvitationCancel }
func (h *BattleCancelHandler) RequiresAuth() bool { return true }

func (h *BattleCancelHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	if f.RecipientUserID == 0 || f.InvitationID == 0 {
		ctx.S.Reply(conn, relay.ErrorFrame("Missing required fields"))
		return nil
	}
	ctx.S.DeliverTo(f.RecipientUserID, map[string]any{
		"type":                 relay.TypeBattleInvitationCancel,
		"invitation_id":        f.InvitationID,
		"cancelled_by_user_id": conn.UserID(),
	})
	return nil
}

type BattleStartedHandler struct{}

func NewBattleStartedHandler() relay.Handler { return &BattleStartedHandler{} }

func (h *BattleStartedHandler) Type() string       { return relay.TypeBattleStarted }
func (h *BattleStartedHandler) RequiresAuth() bool { return true }

func (h *BattleStartedHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	if f.OpponentUserID == 0 || f.BattleID == 0 {
		ctx.S.Reply(conn, relay.ErrorFrame("Missing required fields"))
		return nil
	}
	mode := f.BattleMode
	if mode == 0 {
		mode = 1
	}
	ctx.S.DeliverTo(f.OpponentUserID, map[string]any{
		"type":             relay.TypeBattleStarted,
		"battle_id":        f.BattleID,
		"opponent_user_id": conn.UserID(),
		"battle_mode":      mode,
	})
	// Confirmed echo regardless of opponent online status.
	ctx.S.Reply(conn, map[string]any{
		"type":      relay.TypeBattleStarted,
		"battle_id": f.BattleID,
		"status":    "confirmed",
	})
	return nil
}

type BattlePhaseHandler struct{}

func NewBattlePhaseHandler() relay.Handler { return &BattlePhaseHandler{} }

func (h *BattlePhaseHandler) Type() string       { return relay.TypeBattlePhaseUpdate }
func (h *BattlePhaseHandler) RequiresAuth() bool { return true }

func (h *BattlePhaseHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	if f.OpponentUserID == 0 || f.BattleID == 0 || f.Phase == 0 {
		ctx.S.Reply(conn, relay.ErrorFrame("Missing required fields"))
		return nil
	}
	out := map[string]any{
		"type":      relay.TypeBattlePhaseUpdate,
		"battle_id": f.BattleID,
		"phase":     f.Phase,
	}
	if len(f.PlayerCard) > 0 {
		out["player_card"] = f.PlayerCard
	}
	if len(f.OpponentCard) > 0 {
		out["opponent_card"] = f.OpponentCard
	}
	if f.PhaseWinner != 0 {
		out["phase_winner"] = f.PhaseWinner
	}
	ctx.S.DeliverTo(f.OpponentUserID, out)
	return nil
}

type BattleEndedHandler struct{}

func NewBattleEndedHandler() relay.Handler { return &BattleEndedHandler{} }

func (h *BattleEndedHandler) Type() string       { return relay.TypeBattleEnded }
func (h *BattleEndedHandler) RequiresAuth() bool { return true }

func (h *BattleEndedHandler) Handle(ctx *relay.Context, f *relay.Frame, conn *relay.Conn) error {
	if f.OpponentUserID == 0 || f.BattleID == 0 {
		ctx.S.Reply(conn, relay.ErrorFrame("Missing required fields"))
		return nil
	}
	ctx.S.DeliverTo(f.OpponentUserID, map[string]any{
		"type":           relay.TypeBattleEnded,
		"battle_id":      f.BattleID,
		"winner_user_id": f.WinnerUserID,
		"player_wins":    f.PlayerWins,
		"opponent_wins":  f.OpponentWins,
	})
	ctx.S.Reply(conn, map[string]any{
		"type":      relay.TypeBattleEnded,
		"battle_id": f.BattleID,
		"status":    "confirmed",
	})
	return nil
}
