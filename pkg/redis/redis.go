package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Config interface {
	GetAddr() string
	GetPassword() string
}

// New creates a go-redis client and verifies connectivity.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.GetPassword(),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
