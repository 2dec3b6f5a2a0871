package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Settlement lock per payment id: settle:{payment_id} -> 1
	KeySettleLock = "settle:%s"
)

var TTLSettleLock = 30 * time.Second

// New creates a redis client for the given address.
func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// Locker takes short-lived settlement locks. It is best-effort: the database
// claim row stays the source of truth, the lock only spares duplicate work
// when a gateway redelivers quickly.
type Locker struct {
	rdb *redis.Client
}

// NewLocker creates new Locker instance. A nil client yields a no-op locker.
func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb}
}

// Acquire takes the lock for the payment id. Returns a release func on
// success, nil when another holder owns the lock.
func (l *Locker) Acquire(ctx context.Context, paymentID string) (func(), error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf(KeySettleLock, paymentID)
	ok, err := l.rdb.SetNX(ctx, key, 1, TTLSettleLock).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	return func() {
		_ = l.rdb.Del(context.WithoutCancel(ctx), key).Err()
	}, nil
}
