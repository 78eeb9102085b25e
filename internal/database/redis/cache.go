// Package redis caches link records for the resolution hot path.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pulselabs/linkpulse/internal/models"
	"github.com/redis/go-redis/v9"
)

const linkKeyPrefix = "link:"

// LinkCache keeps frequently resolved links close to the request path.
// Expiry and password checks still run on every hit, so a cached record
// never loosens the access gate.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	return &LinkCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached link or nil on a miss.
func (c *LinkCache) Get(ctx context.Context, code string) (*models.Link, error) {
	const op = "database.redis.LinkCache.Get"

	data, err := c.client.Get(ctx, linkKeyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: failed to get cached link: %w", op, err)
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal cached link: %w", op, err)
	}

	return &link, nil
}

// Set stores the link with a TTL clamped to its expiry, so the cache never
// outlives the link itself. Links that have already expired are not cached.
func (c *LinkCache) Set(ctx context.Context, link *models.Link) error {
	const op = "database.redis.LinkCache.Set"

	ttl := c.ttl
	if link.ExpiresAt != nil {
		remaining := time.Until(*link.ExpiresAt)
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal link: %w", op, err)
	}

	if err := c.client.Set(ctx, linkKeyPrefix+link.Code, data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to cache link: %w", op, err)
	}

	return nil
}
