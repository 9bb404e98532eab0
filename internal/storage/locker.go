package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/story-arbiter/pkg/memory"
)

const (
	SessionLockPrefix = "session-lock:"
	HistoryLockPrefix = "history-lock:"

	defaultLockRetry = 50 * time.Millisecond
)

var ErrLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the lock only if we still own it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker is a distributed memory.Locker built on SetNX with an expiry
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// Ensure RedisLocker implements memory.Locker interface
var _ memory.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, retry: defaultLockRetry, logger: logger}
}

// TryLock makes one attempt. It returns ErrLockHeld if another owner has the key.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	owner := uuid.New().String()

	ok, err := l.client.SetNX(ctx, lockKey, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return l.unlocker(lockKey, owner), nil
}

// Lock waits until the key is free or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		unlock, err := l.TryLock(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) unlocker(lockKey, owner string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled; release regardless
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{lockKey}, owner).Err(); err != nil {
			l.logger.Error("Failed to release lock", "key", lockKey, "error", err)
		}
	}
}
