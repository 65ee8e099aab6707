package relay

import (
	"context"

	"CardArena/logger"
	usermodel "CardArena/module/user/model"
)

// TokenVerifier resolves a credential to an active user, failing closed.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (*usermodel.User, error)
}

// CodeResolver resolves a stable external user code to an active user.
type CodeResolver interface {
	ActiveByUserCode(ctx context.Context, code string) (*usermodel.User, error)
}

// Presence mirrors online state into shared storage so the HTTP side can
// answer isOnline without reaching the gateway. Optional.
type Presence interface {
	Online(ctx context.Context, userCode string) error
	Offline(ctx context.Context, userCode string) error
}

// ReceiptSink receives a fire-and-forget event for every chat delivery the
// gateway completes. Optional.
type ReceiptSink interface {
	Delivered(senderUserID, recipientUserID, timestamp int64)
}

type Deps struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Verifier   TokenVerifier
	Users      CodeResolver
	Presence   Presence
	Receipts   ReceiptSink
}

// Server is the relay core: it owns the registry, dispatches inbound
// frames, and fans events out to live connections.
type Server struct {
	id   string
	reg  *Registry
	disp *Dispatcher

	verifier TokenVerifier
	users    CodeResolver
	presence Presence
	receipts ReceiptSink
}

func NewServer(id string, d Deps) *Server {
	return &Server{
		id:       id,
		reg:      d.Registry,
		disp:     d.Dispatcher,
		verifier: d.Verifier,
		users:    d.Users,
		presence: d.Presence,
		receipts: d.Receipts,
	}
}

func (s *Server) GwID() string            { return s.id }
func (s *Server) Reg() *Registry          { return s.reg }
func (s *Server) Disp() *Dispatcher       { return s.disp }
func (s *Server) Verifier() TokenVerifier { return s.verifier }
func (s *Server) Users() CodeResolver     { return s.users }

// Dispatch parses one raw frame and routes it. Protocol errors are
// reported to the offending connection only; the connection stays open.
func (s *Server) Dispatch(conn *Conn, raw []byte) {
	f, err := ParseFrame(raw)
	if err != nil {
		s.reply(conn, ErrorFrame("Invalid message format"))
		return
	}

	h := s.disp.Get(f.Type)
	if h == nil {
		s.reply(conn, ErrorFrame("Unknown message type"))
		return
	}
	if h.RequiresAuth() && !conn.Authenticated() {
		s.reply(conn, ErrorFrame("Not authenticated"))
		return
	}

	if err := h.Handle(&Context{S: s}, f, conn); err != nil {
		logger.Warnf("[relay] handler type=%s conn=%s err=%v", f.Type, conn.ID, err)
	}
}

// DeliverTo pushes payload to every live connection of userID and returns
// how many got it. A dead connection fails its own send only; the rest of
// the fan-out proceeds.
func (s *Server) DeliverTo(userID int64, payload any) int {
	delivered := 0
	for _, c := range s.reg.ConnectionsFor(userID) {
		if err := c.SendJSON(payload); err != nil {
			logger.Infof("[relay] send user=%d conn=%s err=%v", userID, c.ID, err)
			continue
		}
		delivered++
	}
	return delivered
}

// reply sends to the originating connection; failures are logged, never
// propagated.
func (s *Server) reply(conn *Conn, payload any) {
	if err := conn.SendJSON(payload); err != nil {
		logger.Infof("[relay] reply conn=%s err=%v", conn.ID, err)
	}
}

func (s *Server) Reply(conn *Conn, payload any) { s.reply(conn, payload) }

// MarkOnline mirrors a successful authenticate into presence storage.
func (s *Server) MarkOnline(ctx context.Context, userCode string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.Online(ctx, userCode); err != nil {
		logger.Warnf("[relay] presence online user=%s err=%v", userCode, err)
	}
}

// MarkOffline clears presence once the user's last connection is gone.
func (s *Server) MarkOffline(ctx context.Context, userCode string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.Offline(ctx, userCode); err != nil {
		logger.Warnf("[relay] presence offline user=%s err=%v", userCode, err)
	}
}

// Receipt reports one completed chat delivery.
func (s *Server) Receipt(senderUserID, recipientUserID, ts int64) {
	if s.receipts == nil {
		return
	}
	s.receipts.Delivered(senderUserID, recipientUserID, ts)
}
