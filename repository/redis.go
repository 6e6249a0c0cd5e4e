package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "crm:lock:"

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out short-lived exclusive locks so that only one
// instance runs a scheduled job at a time.
type RedisLocker struct {
	client redis.Cmdable
}

// NewRedisLocker parses url (redis://host:port/db) and returns a locker.
// The caller owns the lifecycle of the underlying client via Close.
func NewRedisLocker(url string) (*RedisLocker, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return &RedisLocker{client: client}, client, nil
}

// Ping verifies the Redis connection is alive.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// TryLock acquires name for ttl. It returns ok=false without error when
// another holder has it. The returned release func is safe to call once.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), ok bool, err error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			utils.Logger.Warn().Err(err).Str("lock", name).Msg("release lock failed")
		}
	}
	return release, true, nil
}
