package relay

import (
	"context"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"CardArena/logger"
)

// DefaultDrainInterval matches the reference cadence of the queue sweep.
const DefaultDrainInterval = 500 * time.Millisecond

// QueuedItem is one externally-persisted pending chat message. Sender and
// recipient are identified by their stable user codes; the payload is
// whatever the persistence path wrote.
type QueuedItem struct {
	SenderCode    string
	RecipientCode string
	Payload       map[string]any
}

// QueueStore drains the pending queue: Drain returns the current batch and
// atomically removes it, so no item can be seen twice.
type QueueStore interface {
	Drain(ctx context.Context) ([]QueuedItem, error)
}

// DrainLoop periodically moves queued messages onto live connections. It
// shares the registry with the read loops but never blocks them: queue and
// user-store I/O happen on this goroutine only, and delivery is best
// effort with no retry for offline parties.
type DrainLoop struct {
	s        *Server
	queue    QueueStore
	users    CodeResolver
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewDrainLoop(s *Server, queue QueueStore, users CodeResolver, interval time.Duration) *DrainLoop {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	return &DrainLoop{
		s:        s,
		queue:    queue,
		users:    users,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Run blocks until Stop; call it on its own goroutine.
func (d *DrainLoop) Run() {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-t.C:
			d.RunOnce(context.Background())
		}
	}
}

func (d *DrainLoop) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// RunOnce drains and delivers one batch. A bad item skips itself, never
// the rest of the batch or the next scheduled run.
func (d *DrainLoop) RunOnce(ctx context.Context) {
	items, err := d.queue.Drain(ctx)
	if err != nil {
		logger.Warnf("[drain] drain queue err=%v", err)
		return
	}
	if len(items) == 0 {
		return
	}
	logger.Infof("[drain] draining %d pending messages", len(items))

	for _, item := range items {
		d.deliverItem(ctx, item)
	}
}

func (d *DrainLoop) deliverItem(ctx context.Context, item QueuedItem) {
	env := ChatEnvelope{Type: TypeChatMessage}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &env,
		WeaklyTypedInput: true,
	})
	if err == nil {
		err = dec.Decode(item.Payload)
	}
	if err != nil {
		logger.Warnf("[drain] bad payload sender=%s recipient=%s err=%v", item.SenderCode, item.RecipientCode, err)
		return
	}
	if env.Type == "" {
		env.Type = TypeChatMessage
	}
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().Unix()
	}

	// Resolution failure for one side skips that side only.
	recipient, rerr := d.users.ActiveByUserCode(ctx, item.RecipientCode)
	if rerr != nil {
		logger.Warnf("[drain] resolve recipient=%s err=%v", item.RecipientCode, rerr)
	} else if env.RecipientUserID == 0 {
		env.RecipientUserID = recipient.ID
	}
	sender, serr := d.users.ActiveByUserCode(ctx, item.SenderCode)
	if serr != nil {
		logger.Warnf("[drain] resolve sender=%s err=%v", item.SenderCode, serr)
	} else if env.SenderUserID == 0 {
		env.SenderUserID = sender.ID
	}

	if rerr == nil {
		if n := d.s.DeliverTo(recipient.ID, env); n > 0 {
			d.s.Receipt(env.SenderUserID, recipient.ID, env.Timestamp)
		}
	}
	// Multi-device echo back to the sender.
	if serr == nil {
		d.s.DeliverTo(sender.ID, env)
	}
}
