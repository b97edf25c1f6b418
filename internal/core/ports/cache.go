package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

// ResponseCache holds recent raw carrier payloads for a short TTL.
type ResponseCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, q domain.TrackingQuery) (raw json.RawMessage, ok bool, err error)
	Set(ctx context.Context, q domain.TrackingQuery, raw json.RawMessage, ttl time.Duration) error
}
