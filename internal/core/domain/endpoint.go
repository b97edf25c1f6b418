package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Topology is the shape of a country's endpoint configuration.
type Topology string

const (
	// TopologyDual is a search/verify URL pair; the request body carries the query.
	TopologyDual Topology = "dual"
	// TopologySingle is one templated URL; the tracking number is part of the path.
	TopologySingle Topology = "single"
)

// ResponseFormat names the upstream payload shape and selects the adapter
// that normalizes it.
type ResponseFormat string

const (
	// FormatLifecycle is {data: [{pno, lifecycle: {entries: [...]}}]}.
	FormatLifecycle ResponseFormat = "lifecycle"
	// FormatParcelLifecycle is {parcellifecycleResponse: {parcelLifeCycleData: {...}}}.
	FormatParcelLifecycle ResponseFormat = "parcel-lifecycle"
)

// TrackingNumberPlaceholder is replaced by the tracking number in single endpoints.
// Endpoints without it get the tracking number appended.
const TrackingNumberPlaceholder = "{trackingNumber}"

// EndpointConfig is the per-country carrier configuration.
type EndpointConfig struct {
	Country        string         `yaml:"-" validate:"required,len=2,alpha"`
	SearchEndpoint string         `yaml:"searchEndpoint" validate:"required_with=VerifyEndpoint,excluded_with=Endpoint,omitempty,url"`
	VerifyEndpoint string         `yaml:"verifyEndpoint" validate:"required_with=SearchEndpoint,excluded_with=Endpoint,omitempty,url"`
	Endpoint       string         `yaml:"endpoint" validate:"required_without=SearchEndpoint,omitempty,url"`
	Format         ResponseFormat `yaml:"format" validate:"omitempty,oneof=lifecycle parcel-lifecycle"`
	Timezone       string         `yaml:"timezone" validate:"omitempty,timezone"`
}

// Topology reports which of the two configuration shapes is in use.
func (c EndpointConfig) Topology() Topology {
	if c.Endpoint != "" {
		return TopologySingle
	}
	return TopologyDual
}

// ResponseFormat returns the configured format, defaulting by topology.
func (c EndpointConfig) ResponseFormat() ResponseFormat {
	if c.Format != "" {
		return c.Format
	}
	if c.Topology() == TopologySingle {
		return FormatParcelLifecycle
	}
	return FormatLifecycle
}

// URLFor returns the URL to call for q.
func (c EndpointConfig) URLFor(q TrackingQuery) string {
	if c.Topology() == TopologyDual {
		if q.WantsVerify() {
			return c.VerifyEndpoint
		}
		return c.SearchEndpoint
	}
	tn := url.PathEscape(q.TrackingNumber)
	if strings.Contains(c.Endpoint, TrackingNumberPlaceholder) {
		return strings.ReplaceAll(c.Endpoint, TrackingNumberPlaceholder, tn)
	}
	return c.Endpoint + tn
}

// Location returns the zone carrier-local timestamps are interpreted in.
func (c EndpointConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: timezone: %w", c.Country, err)
	}
	return loc, nil
}
