package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("queue lock not acquired")
)

// Locker serializes the waiting-queue renumbering per calendar date. Two
// concurrent reorders on the same date must never interleave their
// read-modify-write, or the contiguous-priority invariant breaks.
type Locker interface {
	WithQueueLock(ctx context.Context, date string, fn func(ctx context.Context) error) error
}

type redisQueueLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisQueueLocker creates a locker that uses a per date Redis key, so
// the discipline holds across every process sharing the store.
func NewRedisQueueLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisQueueLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisQueueLocker) WithQueueLock(ctx context.Context, date string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:queue:%s", date)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire queue lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisQueueLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release queue lock: %w", err)
	}
	return nil
}

// localQueueLocker serializes per date within one process. It backs tests
// and single-node deployments that run without Redis.
type localQueueLocker struct {
	mu    sync.Mutex
	dates map[string]*sync.Mutex
}

func NewLocalQueueLocker() Locker {
	return &localQueueLocker{dates: make(map[string]*sync.Mutex)}
}

func (l *localQueueLocker) WithQueueLock(ctx context.Context, date string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.dates[date]
	if !ok {
		m = &sync.Mutex{}
		l.dates[date] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
