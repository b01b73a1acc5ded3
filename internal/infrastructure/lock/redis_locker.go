package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a cross-process Locker built on SET NX PX
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker creates a Redis backed locker. ttl bounds how long a crashed
// holder can keep a key locked.
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

var _ ports.Locker = (*RedisLocker)(nil)

// Acquire takes the lock for key or returns domain.ErrLockHeld
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, domain.Upstream("acquire lock", fmt.Errorf("redis setnx: %w", err))
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Released with a fresh context so a cancelled request still unlocks
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err(); err != nil {
				l.logger.Warn().Err(err).Str("key", lockKey).Msg("Failed to release lock")
			}
		})
	}
	return release, nil
}
