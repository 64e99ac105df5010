package redis

import (
	"context"
	"fmt"

	"premium-order-sync/internal/domain/ports/repository"
	"premium-order-sync/internal/infra/metrics"
)

var _ repository.CacheInvalidator = (*CacheInvalidator)(nil)

// CacheInvalidator drops derived views with a single DEL.
type CacheInvalidator struct {
	cli RedisClient
}

func NewCacheInvalidator(c RedisClient) *CacheInvalidator {
	return &CacheInvalidator{cli: c}
}

func (c *CacheInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.cli.Del(ctx, keys...); err != nil {
		metrics.AddCacheInvalidations("error", len(keys))
		return fmt.Errorf("invalidate %v: %w", keys, err)
	}
	metrics.AddCacheInvalidations("ok", len(keys))
	return nil
}
