package relay

// Handler processes one inbound frame type. RequiresAuth lets the
// dispatcher gate the type centrally; handlers that drop silently instead
// of replying (typing) return false and check the state themselves.
type Handler interface {
	Type() string
	RequiresAuth() bool
	Handle(ctx *Context, f *Frame, conn *Conn) error
}

// Context hands the owning server to handlers.
type Context struct {
	S *Server
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Get(frameType string) Handler {
	return d.handlers[frameType]
}
