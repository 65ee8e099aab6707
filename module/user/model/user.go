package model

// Status
const (
	UserActive   int32 = 0
	UserBanned   int32 = 1
	UserDisabled int32 = 2
)

// User is the gateway's view of an application user. Only the identity and
// display fields the relay depends on are carried here; the admin side owns
// the rest of the row.
type User struct {
	ID          int64  `json:"id"`
	UserCode    string `json:"user_code"` // stable external code, shared with friends
	AuthCode    string `json:"-"`         // opaque credential, never serialized
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
}
