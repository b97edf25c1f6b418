package ports

import "github.com/owen-raum/dpd-tracking/internal/core/domain"

// EndpointRegistry resolves a country code to its carrier configuration.
type EndpointRegistry interface {
	// Resolve is case-insensitive. Unknown codes fail with a
	// domain.KindUnsupportedCountry error listing Supported().
	Resolve(countryCode string) (domain.EndpointConfig, error)
	Supported() []string
}
