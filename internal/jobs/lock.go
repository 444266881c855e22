package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 10 * time.Minute

// Lock keeps a job from running on two replicas at once.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns the lock guarding the named job.
type LockFactory func(job string) Lock

// redisStore is the subset of *redis.Client the lock uses.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLock implements Lock with SETNX and a TTL so a crashed holder cannot
// block the job forever.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// RedisLocks builds one RedisLock per job under radops:jobs:<name>.
func RedisLocks(client *redis.Client, ttl time.Duration) LockFactory {
	return func(job string) Lock {
		l, err := NewRedisLock(client, "radops:jobs:"+job, ttl)
		if err != nil {
			return NoopLock{}
		}
		return l
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this holder still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// NoopLock always succeeds. Used when Redis is not configured and a single
// instance is running.
type NoopLock struct{}

func (NoopLock) Acquire(context.Context) (bool, error) { return true, nil }
func (NoopLock) Release(context.Context) error         { return nil }

func NoopLocks(string) Lock { return NoopLock{} }
