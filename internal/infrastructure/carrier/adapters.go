package carrier

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
	"github.com/owen-raum/dpd-tracking/internal/core/ports"
)

// Adapters selects the normalizer for an endpoint's response format.
type Adapters map[domain.ResponseFormat]ports.ResponseAdapter

// DefaultAdapters returns every built-in adapter.
func DefaultAdapters(log zerolog.Logger) Adapters {
	return NewAdapters(LifecycleAdapter{}, NewParcelLifecycleAdapter(log))
}

func NewAdapters(list ...ports.ResponseAdapter) Adapters {
	set := make(Adapters, len(list))
	for _, a := range list {
		set[a.Format()] = a
	}
	return set
}

// For returns the adapter configured for endpoint.
func (s Adapters) For(endpoint domain.EndpointConfig) (ports.ResponseAdapter, error) {
	format := endpoint.ResponseFormat()
	a, ok := s[format]
	if !ok {
		return nil, fmt.Errorf("country %s: no adapter for format %q", endpoint.Country, format)
	}
	return a, nil
}
