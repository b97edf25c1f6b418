// Package metrics defines the Prometheus metrics recorded during a tracking
// run. It is the single source of truth for metric names, labels and help
// strings.
//
// A CLI run is short-lived, so nothing is scraped: the collected values are
// written once to a node-exporter textfile when a path is configured.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dpd_tracking"

// Outcome label values shared by attempts and results.
const (
	OutcomeSuccess = "success"
	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheError     = "error"
)

// Recorder owns a private registry so repeated construction (tests, multiple
// runs in one process) never collides with the default registerer.
type Recorder struct {
	registry *prometheus.Registry

	// attempts counts carrier requests.
	// Labels:
	//   - country: upper-case country code
	//   - outcome: "success" or an error kind (e.g. "transient", "not_found")
	attempts *prometheus.CounterVec

	// results counts finished Track calls, labelled like attempts.
	results *prometheus.CounterVec

	// attemptDuration measures a single carrier request including decoding.
	attemptDuration *prometheus.HistogramVec

	// backoff records each scheduled sleep between attempts.
	backoff *prometheus.HistogramVec

	// cacheLookups counts response cache reads.
	// Label:
	//   - result: "hit", "miss" or "error"
	cacheLookups *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of carrier requests, by country and outcome.",
			},
			[]string{"country", "outcome"},
		),
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_total",
				Help:      "Total number of tracking lookups, by country and final outcome.",
			},
			[]string{"country", "outcome"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Duration of a single carrier request, response decoding included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"country"},
		),
		backoff: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backoff_seconds",
				Help:      "Delay scheduled before a retry.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s … 32s
			},
			[]string{"country"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of response cache lookups, labelled by result (hit/miss/error).",
			},
			[]string{"result"},
		),
	}
}

func (r *Recorder) ObserveAttempt(country, outcome string, took time.Duration) {
	r.attempts.WithLabelValues(country, outcome).Inc()
	r.attemptDuration.WithLabelValues(country).Observe(took.Seconds())
}

func (r *Recorder) ObserveBackoff(country string, delay time.Duration) {
	r.backoff.WithLabelValues(country).Observe(delay.Seconds())
}

func (r *Recorder) ObserveResult(country, outcome string) {
	r.results.WithLabelValues(country, outcome).Inc()
}

func (r *Recorder) ObserveCache(result string) {
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every collected metric to path in the text exposition
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
