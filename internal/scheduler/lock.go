package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"almaconnector/internal/constants"
)

// Locker grants a key to one caller until ttl expires.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisLocker struct {
	client redis.UniversalClient
	owner  string
}

// NewRedisLocker stores owner as the lock value so operators can see which
// process fired an entry.
func NewRedisLocker(client redis.UniversalClient, owner string) *RedisLocker {
	return &RedisLocker{client: client, owner: owner}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, constants.ScheduleLockPrefix+key, l.owner, ttl).Result()
}

// localLocker always grants the lock; used without Redis.
type localLocker struct{}

func (localLocker) Acquire(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
