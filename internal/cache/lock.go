package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/logger"
	apperrors "github.com/semenkulikov/Online-school/pkg/errors"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ImportLock keeps CLI and worker imports from overlapping.
type ImportLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
}

func NewImportLock(client *redis.Client, cfg *config.Config) *ImportLock {
	return &ImportLock{
		client: client,
		key:    cfg.Redis.LockKey,
		ttl:    cfg.Redis.LockTTL,
		log:    logger.Get(),
	}
}

func (l *ImportLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrImportLocked
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.log.Error().Err(err).Str("key", l.key).Msg("Failed to release import lock")
		}
	}, nil
}
