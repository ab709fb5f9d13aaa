package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/tamias-pos/customer-display/pkg/config"
	"github.com/tamias-pos/customer-display/pkg/global"
)

func NewClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Protocol: 2,
	})
}

// Ping verifies the connection within the default round-trip timeout.
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := global.GetTimer(ctx)
	defer cancel()
	return client.Ping(ctx).Err()
}
