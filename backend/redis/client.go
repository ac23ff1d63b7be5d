package redisstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-vcagent/core"
	"github.com/redis/go-redis/v9"
)

// NewClient parses cfg.URL and pings the server before returning.
func NewClient(ctx context.Context, cfg core.RedisConfig) (*redis.Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, core.NewError(core.ErrInvalidConfiguration, "", "redis url is required", nil)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, core.NewError(core.ErrInvalidConfiguration, "", "parse redis url", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return client, nil
}
