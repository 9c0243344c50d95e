package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when the stored token matches,
// so an expired lease taken over by another holder is never clobbered.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLock implements a record-scoped lease as a Redis key with TTL.
// Expiry handles crashed holders without any sweeper.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func lockKey(txnID string) string {
	return fmt.Sprintf("lock:payment:%s", txnID)
}

func (l *RedisLock) Acquire(ctx context.Context, txnID string, timeout time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, lockKey(txnID), token, timeout).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock for %s: %w", txnID, err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (l *RedisLock) Release(ctx context.Context, txnID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(txnID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock for %s: %w", txnID, err)
	}
	return nil
}
