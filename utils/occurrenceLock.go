package utils

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// RedisOccurrenceLocker serializes mutations of one occurrence across
// instances. Client is resolved per call since Redis connects after the
// HTTP listener is up; a nil client disables locking.
type RedisOccurrenceLocker struct {
	Client func() *redislock.Client
	TTL    time.Duration
}

func NewRedisOccurrenceLocker(client func() *redislock.Client) *RedisOccurrenceLocker {
	return &RedisOccurrenceLocker{Client: client, TTL: 15 * time.Second}
}

// Obtain tries for up to ~1s before failing with ErrorLockBusy.
func (l *RedisOccurrenceLocker) Obtain(ctx context.Context, key string) (func(), error) {
	if l == nil || l.Client == nil {
		return func() {}, nil
	}
	client := l.Client()
	if client == nil {
		return func() {}, nil
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	lock, err := client.Obtain(ctx, "lock:"+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrorLockBusy
		}
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
