package domain

import (
	"encoding/json"
	"time"
)

// UnknownStatus is used when the carrier gives no label for an entry.
const UnknownStatus = "Unknown status"

// TrackingEvent is one normalized status update for a parcel.
type TrackingEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	Description string          `json:"description"`
	Location    string          `json:"location,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"` // the untouched carrier entry
}

// Destination is where the carrier says the parcel is headed.
type Destination struct {
	City    string `json:"city,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// TrackingResult is the normalized answer for one query.
// Events are kept in the order the carrier returned them.
type TrackingResult struct {
	Success        bool            `json:"success"`
	TrackingNumber string          `json:"trackingNumber"`
	Country        string          `json:"country"`
	Status         string          `json:"status,omitempty"`
	Destination    *Destination    `json:"destination,omitempty"`
	Events         []TrackingEvent `json:"events"`
	Raw            json.RawMessage `json:"raw"`
}

// NewTrackingResult builds a successful result. An empty event list is never
// a success: it is reported as NotFound for trackingNumber.
func NewTrackingResult(trackingNumber, country string, events []TrackingEvent, raw json.RawMessage) (*TrackingResult, error) {
	if len(events) == 0 {
		return nil, NotFound(trackingNumber)
	}
	return &TrackingResult{
		Success:        true,
		TrackingNumber: trackingNumber,
		Country:        country,
		Events:         events,
		Raw:            raw,
	}, nil
}

// Latest returns the first event, which carriers report as the most recent.
func (r *TrackingResult) Latest() TrackingEvent {
	return r.Events[0]
}

// CurrentStatus returns the carrier's status label, falling back to the
// latest event description.
func (r *TrackingResult) CurrentStatus() string {
	if r.Status != "" {
		return r.Status
	}
	if len(r.Events) > 0 && r.Events[0].Description != "" {
		return r.Events[0].Description
	}
	return "Unknown"
}
