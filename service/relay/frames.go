package relay

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Client -> server frame types.
const (
	TypeAuthenticate             = "authenticate"
	TypeChatMessage              = "chat_message"
	TypeTyping                   = "typing"
	TypeBattleInvitationSent     = "battle_invitation_sent"
	TypeBattleInvitationResponse = "battle_invitation_response"
	TypeBattleInvitationCancel   = "battle_invitation_cancelled"
	TypeBattleStarted            = "battle_started"
	TypeBattlePhaseUpdate        = "battle_phase_update"
	TypeBattleEnded              = "battle_ended"
	TypePing                     = "ping"
)

// Server -> client frame types.
const (
	TypeAuthenticated    = "authenticated"
	TypeAuthError        = "auth_error"
	TypeError            = "error"
	TypeMessageSent      = "message_sent"
	TypeBattleInvitation = "battle_invitation"
	TypePong             = "pong"
)

// Frame is the decoded inbound message. One struct covers every inbound
// type; handlers read only the fields their type requires.
type Frame struct {
	Type string `json:"type"`

	AuthToken string `json:"auth_token,omitempty"`

	RecipientUserID int64  `json:"recipient_user_id,omitempty"`
	SenderUserID    int64  `json:"sender_user_id,omitempty"`
	OpponentUserID  int64  `json:"opponent_user_id,omitempty"`
	MessageText     string `json:"message_text,omitempty"`
	IsTyping        *bool  `json:"is_typing,omitempty"`

	Invitation   json.RawMessage `json:"invitation,omitempty"`
	InvitationID int64           `json:"invitation_id,omitempty"`
	Response     string          `json:"response,omitempty"`

	BattleID     int64           `json:"battle_id,omitempty"`
	BattleMode   int             `json:"battle_mode,omitempty"`
	Phase        int             `json:"phase,omitempty"`
	PlayerCard   json.RawMessage `json:"player_card,omitempty"`
	OpponentCard json.RawMessage `json:"opponent_card,omitempty"`
	PhaseWinner  int64           `json:"phase_winner,omitempty"`
	WinnerUserID int64           `json:"winner_user_id,omitempty"`
	PlayerWins   int             `json:"player_wins,omitempty"`
	OpponentWins int             `json:"opponent_wins,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Type == "" {
		return nil, errors.New("frame has no type")
	}
	return f, nil
}

// ChatEnvelope is the relayed chat payload. The mapstructure tags let the
// drain loop decode the opaque queued payload into the same shape the live
// path builds.
type ChatEnvelope struct {
	Type            string `json:"type" mapstructure:"type"`
	SenderUserID    int64  `json:"sender_user_id" mapstructure:"sender_user_id"`
	RecipientUserID int64  `json:"recipient_user_id" mapstructure:"recipient_user_id"`
	MessageText     string `json:"message_text" mapstructure:"message_text"`
	Timestamp       int64  `json:"timestamp" mapstructure:"timestamp"`
}

func ErrorFrame(msg string) map[string]any {
	return map[string]any{"type": TypeError, "message": msg}
}

func AuthErrorFrame(msg string) map[string]any {
	return map[string]any{"type": TypeAuthError, "message": msg}
}
