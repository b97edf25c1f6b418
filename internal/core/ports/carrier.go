package ports

import (
	"context"
	"encoding/json"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

// CarrierTransport performs exactly one HTTP exchange with the carrier.
// Failures are returned as domain.KindTransient errors; retrying is the
// caller's job.
type CarrierTransport interface {
	Fetch(ctx context.Context, endpoint domain.EndpointConfig, q domain.TrackingQuery) (json.RawMessage, error)
}

// ResponseAdapter turns one upstream payload shape into a TrackingResult.
//
// Implementations return domain.KindNotFound when the payload carries no
// lifecycle data, domain.KindPostalCodeMismatch when verification against the
// payload fails, and domain.KindTransient for anything they cannot parse.
type ResponseAdapter interface {
	Format() domain.ResponseFormat
	Normalize(raw json.RawMessage, q domain.TrackingQuery, endpoint domain.EndpointConfig) (*domain.TrackingResult, error)
}

// AdapterSet picks the ResponseAdapter for an endpoint's format.
type AdapterSet interface {
	For(endpoint domain.EndpointConfig) (ResponseAdapter, error)
}
