package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if we still own it
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica that talks to the same Redis
type Redis struct {
	rdb    *goredis.Client
	log    *zap.Logger
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis creates a Redis-backed locker. ttl bounds how long a crashed holder blocks others.
func NewRedis(rdb *goredis.Client, log *zap.Logger, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{
		rdb:    rdb,
		log:    log.With(zap.String("component", "RedisLocker")),
		prefix: "procurement:lock:",
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
}

// Acquire polls SET NX until it wins or ctx is done
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(r.retry):
		}
	}

	return func() {
		// Release on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.rdb, []string{fullKey}, token).Err(); err != nil {
			r.log.Warn("Failed to release lock", zap.String("key", fullKey), zap.Error(err))
		}
	}, nil
}
