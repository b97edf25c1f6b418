package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

const keyPrefix = "dpd:track"

// ResponseCache stores raw carrier payloads keyed by query.
// Key format: dpd:track:<country>:<tracking_number>:<postal_code>
type ResponseCache struct {
	client *redis.Client
}

// NewResponseCache creates a ResponseCache wrapping the given Redis client.
func NewResponseCache(client *redis.Client) *ResponseCache {
	return &ResponseCache{client: client}
}

// Get returns the cached payload for q; ok is false on a miss.
func (c *ResponseCache) Get(ctx context.Context, q domain.TrackingQuery) (json.RawMessage, bool, error) {
	b, err := c.client.Get(ctx, c.key(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return json.RawMessage(b), true, nil
}

// Set stores raw for q, expiring after ttl.
func (c *ResponseCache) Set(ctx context.Context, q domain.TrackingQuery, raw json.RawMessage, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(q), []byte(raw), ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *ResponseCache) key(q domain.TrackingQuery) string {
	return strings.Join([]string{keyPrefix, strings.ToUpper(q.CountryCode), q.TrackingNumber, q.PostalCode}, ":")
}
