// Package ratelimit throttles inbound webhook traffic per sender using
// a Redis counter. When Redis is disabled or unreachable the limiter
// degrades to allowing everything rather than blocking commands.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/motorpool/motorpool/internal/service/logger"
)

// Limiter answers whether one more event for a key is within limits.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// Config controls the window counter.
type Config struct {
	Enabled  bool
	RedisURL string
	Limit    int
	Window   time.Duration
}

type redisLimiter struct {
	client *redis.Client
	log    logger.Logger
	limit  int
	window time.Duration
}

// New creates a Redis-backed limiter, or a noop one when disabled.
func New(config Config, log logger.Logger) (Limiter, error) {
	if !config.Enabled {
		log.Info(context.Background(), "Rate limiting disabled", nil)
		return NewNoop(), nil
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if config.Limit <= 0 {
		config.Limit = 20
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	log.Info(context.Background(), "Rate limiting service initialized", map[string]interface{}{
		"limit":  config.Limit,
		"window": config.Window.String(),
	})

	return &redisLimiter{
		client: client,
		log:    log,
		limit:  config.Limit,
		window: config.Window,
	}, nil
}

// Allow counts the event and reports whether the key stayed within the
// window limit. Redis failures allow the event through.
func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	pipeline := l.client.Pipeline()
	incr := pipeline.Incr(ctx, redisKey)
	pipeline.Expire(ctx, redisKey, l.window)
	if _, err := pipeline.Exec(ctx); err != nil {
		l.log.Warn(ctx, "Rate limit check failed, allowing request", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return true, nil
	}

	count := incr.Val()
	if count > int64(l.limit) {
		l.log.Warn(ctx, "Rate limit exceeded", map[string]interface{}{
			"key":   key,
			"count": count,
			"limit": l.limit,
		})
		return false, nil
	}

	return true, nil
}

func (l *redisLimiter) Close() error {
	return l.client.Close()
}

type noopLimiter struct{}

// NewNoop returns a limiter that always allows.
func NewNoop() Limiter {
	return noopLimiter{}
}

func (noopLimiter) Allow(ctx context.Context, key string) (bool, error) { return true, nil }
func (noopLimiter) Close() error                                        { return nil }
