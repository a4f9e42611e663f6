package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FactoryConfig holds the settings to build a DocumentCache
type FactoryConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// FactoryOption configures NewDocumentCache
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	logger           *zap.Logger
	inMemoryFallback bool
	pingTimeout      time.Duration
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(o *factoryOptions) {
		o.logger = logger
	}
}

// WithInMemoryFallback switches to the in-memory cache when Redis cannot be reached
func WithInMemoryFallback(enabled bool) FactoryOption {
	return func(o *factoryOptions) {
		o.inMemoryFallback = enabled
	}
}

// NewDocumentCache returns a Redis-backed cache when enabled, and an in-memory
// one otherwise. The returned close function releases the Redis client.
func NewDocumentCache(cfg FactoryConfig, opts ...FactoryOption) (DocumentCache, func() error, error) {
	o := &factoryOptions{
		logger:      zap.NewNop(),
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	noop := func() error { return nil }

	if !cfg.Enabled {
		o.logger.Info("Redis disabled, using in-memory document cache")
		return NewInMemoryDocumentCache(), noop, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), o.pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if o.inMemoryFallback {
			o.logger.Warn("Redis unavailable, falling back to in-memory document cache",
				zap.String("addr", cfg.Addr),
				zap.Error(err))
			return NewInMemoryDocumentCache(), noop, nil
		}
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	o.logger.Info("Redis document cache connected", zap.String("addr", cfg.Addr))
	return NewRedisDocumentCache(client, cfg.KeyPrefix), client.Close, nil
}
