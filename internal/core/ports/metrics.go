package ports

import "time"

// TrackingMetrics receives run counters from the tracking service.
type TrackingMetrics interface {
	// ObserveAttempt records one carrier request. outcome is "success" or an
	// error kind name.
	ObserveAttempt(country, outcome string, took time.Duration)
	ObserveBackoff(country string, delay time.Duration)
	// ObserveResult records the final outcome of a Track call.
	ObserveResult(country, outcome string)
	ObserveCache(result string)
}
