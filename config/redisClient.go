package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ConnectRedis initializes the Redis client
func ConnectRedis(ctx context.Context, s Settings) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     s.RedisAddress,
		Password: s.RedisPassword,
		DB:       0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.WithField("addr", s.RedisAddress).Info("connected to Redis")

	return client, nil
}
