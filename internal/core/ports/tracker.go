package ports

import (
	"context"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

// Tracker answers a single tracking query.
type Tracker interface {
	Track(ctx context.Context, q domain.TrackingQuery) (*domain.TrackingResult, error)
}
