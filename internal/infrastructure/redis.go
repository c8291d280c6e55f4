package infrastructure

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to redis. It returns a nil client when no address
// is configured, which callers treat as "caching disabled".
func NewRedisClient(ctx context.Context, config *RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if config.Addr == "" {
		logger.Info("Redis not configured, stats cache disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established",
		zap.String("addr", config.Addr),
		zap.Int("db", config.DB),
	)
	return client, nil
}
