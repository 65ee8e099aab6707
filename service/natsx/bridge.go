package natsx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"CardArena/logger"
	"CardArena/service/relay"
)

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func (c *Config) norm() {
	if c.Name == "" {
		c.Name = "arena-gateway"
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Client bridges HTTP-originated battle events onto live connections. The
// HTTP side publishes to a subject after persisting the invitation; the
// gateway fans the event out to the recipient's devices.
type Client struct {
	nc *nats.Conn
}

func Dial(c Config) (*Client, error) {
	c.norm()
	nc, err := nats.Connect(strings.Join(c.Servers, ","),
		nats.Name(c.Name),
		nats.ReconnectWait(c.ReconnectWait),
		nats.Timeout(c.Timeout),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

type battleEvent struct {
	RecipientUserCode string         `json:"recipient_user_code"`
	Event             map[string]any `json:"event"`
}

const resolveTimeout = 2 * time.Second

// SubscribeBattleEvents starts the push bridge. A bad event skips itself;
// the subscription stays up.
func (c *Client) SubscribeBattleEvents(subject string, s *relay.Server, users relay.CodeResolver) error {
	_, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		var ev battleEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			logger.Warnf("[natsx] bad battle event subject=%s err=%v", m.Subject, err)
			return
		}
		if ev.RecipientUserCode == "" || len(ev.Event) == 0 {
			logger.Warnf("[natsx] battle event missing recipient or body subject=%s", m.Subject)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		user, err := users.ActiveByUserCode(ctx, ev.RecipientUserCode)
		cancel()
		if err != nil {
			logger.Infof("[natsx] resolve recipient=%s err=%v", ev.RecipientUserCode, err)
			return
		}
		s.DeliverTo(user.ID, ev.Event)
	})
	return errors.Wrap(err, "subscribe battle events")
}
