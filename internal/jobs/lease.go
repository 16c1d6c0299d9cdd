package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease is a best-effort cross-process mutex around a job run, backed by
// Redis SET NX. The ledger's (student, period) uniqueness already makes
// concurrent runs harmless; the lease only avoids the wasted work of two
// processes walking the same roster. With no Redis configured it always
// grants.
type Lease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewLease(client *redis.Client, key string, ttl time.Duration) *Lease {
	return &Lease{client: client, key: key, ttl: ttl}
}

func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, l.key, "1", l.ttl).Result()
}

func (l *Lease) Release(ctx context.Context) {
	if l.client == nil {
		return
	}
	_ = l.client.Del(ctx, l.key).Err()
}
