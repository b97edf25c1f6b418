package domain

import "strings"

// DefaultCountry is used when the caller does not name a country.
const DefaultCountry = "AT"

// TrackingQuery describes a single lookup. It is built once per invocation
// and never mutated.
type TrackingQuery struct {
	TrackingNumber string `json:"trackingNumber" validate:"required,alphanum,max=64"`
	PostalCode     string `json:"postalCode,omitempty" validate:"omitempty,max=16"`
	CountryCode    string `json:"country" validate:"required"`
}

// NewTrackingQuery trims its inputs, drops the grouping spaces printed on
// labels from the tracking number and upper-cases the country code.
// An empty country falls back to DefaultCountry.
func NewTrackingQuery(trackingNumber, postalCode, countryCode string) TrackingQuery {
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	if country == "" {
		country = DefaultCountry
	}
	return TrackingQuery{
		TrackingNumber: strings.Join(strings.Fields(trackingNumber), ""),
		PostalCode:     strings.TrimSpace(postalCode),
		CountryCode:    country,
	}
}

// WantsVerify reports whether a postal code was supplied for verification.
func (q TrackingQuery) WantsVerify() bool {
	return q.PostalCode != ""
}
