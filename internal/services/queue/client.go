package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client for queue operations
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient connects to Redis. redisURL may be a redis:// URL or a bare host:port.
func NewClient(ctx context.Context, redisURL string, logger *slog.Logger) (*Client, error) {
	rdb, err := Dial(redisURL)
	if err != nil {
		return nil, err
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis for queue service", "url", redisURL)
	return &Client{rdb: rdb, logger: logger}, nil
}

// NewClientFromRedis wraps an existing connection
func NewClientFromRedis(rdb *redis.Client, logger *slog.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// Dial builds a Redis client without connecting
func Dial(redisURL string) (*redis.Client, error) {
	if !strings.Contains(redisURL, "://") {
		return redis.NewClient(&redis.Options{Addr: redisURL}), nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetRedisClient returns the underlying Redis client for direct operations
func (c *Client) GetRedisClient() *redis.Client {
	return c.rdb
}
