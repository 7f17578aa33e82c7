package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/logger"
	"github.com/semenkulikov/Online-school/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// SummaryCache keeps the ledger summary between imports.
type SummaryCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
}

func NewSummaryCache(client *redis.Client, cfg *config.Config) *SummaryCache {
	return &SummaryCache{
		client: client,
		key:    cfg.Redis.SummaryKey,
		ttl:    cfg.Redis.SummaryCacheTTL,
		log:    logger.Get(),
	}
}

// Get returns the cached summary or computes it with load and caches it.
// A broken cache never fails the request.
func (c *SummaryCache) Get(ctx context.Context, load func(ctx context.Context) (*model.Summary, error)) (*model.Summary, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var summary model.Summary
		if err := json.Unmarshal(data, &summary); err == nil {
			return &summary, nil
		}
		c.log.Warn().Str("key", c.key).Msg("Discarding unreadable cached summary")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", c.key).Msg("Failed to read cached summary")
	}

	summary, err := load(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", c.key).Msg("Failed to cache summary")
	}
	return summary, nil
}

func (c *SummaryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
