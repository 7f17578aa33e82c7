package queue

import (
	"context"
	"errors"
	"time"

	"github.com/semenkulikov/Online-school/internal/config"
	"github.com/semenkulikov/Online-school/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const pollTimeout = 5 * time.Second

type Consumer struct {
	client    *redis.Client
	queue     string
	dlqSuffix string
	log       zerolog.Logger
}

type MessageHandler func(ctx context.Context, data []byte) error

func NewConsumer(redisClient *RedisClient, cfg *config.Config) *Consumer {
	return &Consumer{
		client:    redisClient.Client(),
		queue:     cfg.Redis.ImportQueue,
		dlqSuffix: cfg.Redis.DLQSuffix,
		log:       logger.Get(),
	}
}

// ConsumeImportQueue handles one message at a time until ctx is done.
// Messages the handler rejects are moved to the dead letter queue.
func (c *Consumer) ConsumeImportQueue(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.consumeOne(ctx, pollTimeout, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error().Err(err).Str("queue", c.queue).Msg("Failed to consume message")
			time.Sleep(time.Second)
		}
	}
}

// consumeOne waits up to timeout for a message. A timeout is not an error.
func (c *Consumer) consumeOne(ctx context.Context, timeout time.Duration, handler MessageHandler) error {
	result, err := c.client.BRPop(ctx, timeout, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if len(result) < 2 {
		return nil
	}

	message := result[1]
	if err := handler(ctx, []byte(message)); err != nil {
		c.log.Error().Err(err).Str("queue", c.queue).Msg("Failed to process message")
		dlqName := c.queue + c.dlqSuffix
		if dlqErr := c.client.LPush(ctx, dlqName, message).Err(); dlqErr != nil {
			c.log.Error().Err(dlqErr).Str("dlq", dlqName).Msg("Failed to move message to DLQ")
		}
	}
	return nil
}
