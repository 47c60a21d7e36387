package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const generatedImagePrefix = "generated_image:"

// ResultTTL is how long a generated-image reference stays cached. Webhook
// retries and client re-polls within this window replay the stored result
// instead of re-invoking the generation API.
const ResultTTL = 30 * 24 * time.Hour

// Store is the slice of the Redis API the result cache needs.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// ResultCache stores the final generated-image reference per order id.
type ResultCache struct {
	store Store
}

func NewResultCache(store Store) *ResultCache {
	return &ResultCache{store: store}
}

// SaveGeneratedImage writes the result for an order. Written once on first
// successful generation; silently a no-op when no store is configured.
func (c *ResultCache) SaveGeneratedImage(ctx context.Context, orderID, imageURL string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Set(ctx, generatedImagePrefix+orderID, imageURL, ResultTTL).Err()
}

// GetGeneratedImage returns the cached result for an order, or "" if absent.
func (c *ResultCache) GetGeneratedImage(ctx context.Context, orderID string) (string, error) {
	if c == nil || c.store == nil {
		return "", nil
	}
	v, err := c.store.Get(ctx, generatedImagePrefix+orderID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
