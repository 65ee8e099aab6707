package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: arena:presence:<user_code>
// Value is the gateway id; the TTL bounds staleness if a node dies without
// cleaning up.
func presenceKey(userCode string) string { return "arena:presence:" + userCode }

// PresenceStore mirrors who is online into redis so HTTP handlers on other
// nodes can answer isOnline without asking the gateway.
type PresenceStore struct {
	rdb       *redis.Client
	gatewayID string
	ttl       time.Duration
}

func NewPresence(rdb *redis.Client, gatewayID string, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceStore{rdb: rdb, gatewayID: gatewayID, ttl: ttl}
}

func (p *PresenceStore) Online(ctx context.Context, userCode string) error {
	return p.rdb.Set(ctx, presenceKey(userCode), p.gatewayID, p.ttl).Err()
}

func (p *PresenceStore) Offline(ctx context.Context, userCode string) error {
	return p.rdb.Del(ctx, presenceKey(userCode)).Err()
}

// Lookup reports which gateway, if any, currently holds the user.
func (p *PresenceStore) Lookup(ctx context.Context, userCode string) (gatewayID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(userCode)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
