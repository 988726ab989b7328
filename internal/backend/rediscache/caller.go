package rediscache

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/acme/scatter-gather/internal/config"
	apperrors "github.com/acme/scatter-gather/pkg/errors"
)

// Getter is the subset of the redis client the caller needs.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Caller answers each input with the value stored under prefix+input.
type Caller struct {
	id     string
	prefix string
	client Getter
}

// NewCaller constructs a Redis-backed caller.
func NewCaller(client Getter, cfg config.RedisBackendConfig) *Caller {
	return &Caller{id: cfg.ID, prefix: cfg.KeyPrefix, client: client}
}

// ID returns the caller id.
func (c *Caller) ID() string { return c.id }

// Invoke looks the input up. A missing key is reported as ErrNotFound.
func (c *Caller) Invoke(ctx context.Context, input string) (string, error) {
	val, err := c.client.Get(ctx, c.Key(input)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("rediscache %s: key %q: %w", c.id, c.Key(input), apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("rediscache %s: get: %w", c.id, err)
	}
	return val, nil
}

// Key returns the redis key consulted for input.
func (c *Caller) Key(input string) string {
	return c.prefix + input
}
