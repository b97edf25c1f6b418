package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
	"github.com/owen-raum/dpd-tracking/internal/core/ports"
	"github.com/owen-raum/dpd-tracking/internal/pkg/validate"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultAttemptTimeout = 15 * time.Second
)

const outcomeSuccess = "success"

// Options tunes the retry loop. Zero values select the defaults above;
// a zero CacheTTL disables caching.
type Options struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	CacheTTL       time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	return o
}

type trackingService struct {
	registry  ports.EndpointRegistry
	transport ports.CarrierTransport
	adapters  ports.AdapterSet
	cache     ports.ResponseCache
	metrics   ports.TrackingMetrics
	opts      Options
	log       zerolog.Logger
	tracer    trace.Tracer
}

// NewTrackingService returns a Tracker. cache and metrics may be nil.
func NewTrackingService(
	registry ports.EndpointRegistry,
	transport ports.CarrierTransport,
	adapters ports.AdapterSet,
	cache ports.ResponseCache,
	metrics ports.TrackingMetrics,
	opts Options,
	log zerolog.Logger,
) ports.Tracker {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &trackingService{
		registry:  registry,
		transport: transport,
		adapters:  adapters,
		cache:     cache,
		metrics:   metrics,
		opts:      opts.withDefaults(),
		log:       log,
		tracer:    otel.Tracer("service.Tracking"),
	}
}

// Track resolves the country, fetches the carrier payload with retries and
// normalizes it. Only transient failures are retried.
func (s *trackingService) Track(ctx context.Context, q domain.TrackingQuery) (*domain.TrackingResult, error) {
	ctx, span := s.tracer.Start(ctx, "TrackingService.Track")
	defer span.End()
	span.SetAttributes(
		attribute.String("dpd.country", q.CountryCode),
		attribute.Bool("dpd.verify", q.WantsVerify()),
	)

	res, err := s.track(ctx, q)
	s.metrics.ObserveResult(q.CountryCode, outcomeOf(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.KindOf(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.Int("dpd.events", len(res.Events)))
	return res, nil
}

func (s *trackingService) track(ctx context.Context, q domain.TrackingQuery) (*domain.TrackingResult, error) {
	// 1. Reject malformed queries before anything touches the network.
	if err := validate.Struct(q); err != nil {
		return nil, domain.InvalidQuery(err)
	}

	// 2. Resolve the endpoint and its response adapter.
	endpoint, err := s.registry.Resolve(q.CountryCode)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.For(endpoint)
	if err != nil {
		return nil, fmt.Errorf("track: %w", err)
	}

	// 3. A cached payload that still normalizes is served as is.
	if res, ok := s.fromCache(ctx, q, endpoint, adapter); ok {
		return res, nil
	}

	// 4. Attempt loop.
	var (
		result   *domain.TrackingResult
		payload  json.RawMessage
		attempts int
		lastErr  error
	)
	backoff := s.backoff(q.CountryCode, &attempts, &lastErr)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		res, raw, err := s.attempt(ctx, q, endpoint, adapter, attempts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if domain.IsRetryable(err) {
				lastErr = err
				return retry.RetryableError(err)
			}
			return err
		}
		result, payload = res, raw
		return nil
	})

	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, domain.Cancelled(ctx.Err())
	case domain.IsRetryable(err):
		return nil, domain.RetriesExhausted(attempts, err)
	default:
		return nil, err
	}

	// 5. Remember the payload for a short while.
	s.toCache(ctx, q, payload)

	s.log.Debug().
		Str("tracking_number", result.TrackingNumber).
		Str("country", result.Country).
		Int("events", len(result.Events)).
		Int("attempts", attempts).
		Msg("tracking result")

	return result, nil
}

// attempt performs one bounded fetch-and-normalize round.
func (s *trackingService) attempt(
	ctx context.Context,
	q domain.TrackingQuery,
	endpoint domain.EndpointConfig,
	adapter ports.ResponseAdapter,
	n int,
) (*domain.TrackingResult, json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "TrackingService.attempt",
		trace.WithAttributes(attribute.Int("dpd.attempt", n)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	defer cancel()

	start := time.Now()
	res, raw, err := s.fetch(ctx, q, endpoint, adapter)
	s.metrics.ObserveAttempt(q.CountryCode, outcomeOf(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.KindOf(err).String())
		s.log.Debug().Err(err).Int("attempt", n).Str("country", q.CountryCode).Msg("attempt failed")
		return nil, nil, err
	}
	return res, raw, nil
}

func (s *trackingService) fetch(
	ctx context.Context,
	q domain.TrackingQuery,
	endpoint domain.EndpointConfig,
	adapter ports.ResponseAdapter,
) (*domain.TrackingResult, json.RawMessage, error) {
	raw, err := s.transport.Fetch(ctx, endpoint, q)
	if err != nil {
		// Transport failures are transient unless classified otherwise.
		if domain.KindOf(err) == domain.KindUnknown {
			err = domain.Transient(err)
		}
		return nil, nil, err
	}
	res, err := adapter.Normalize(raw, q, endpoint)
	if err != nil {
		return nil, nil, err
	}
	return res, raw, nil
}

// backoff doubles BaseDelay after every failed attempt and stops once
// MaxAttempts have been made. Each scheduled retry is logged and recorded.
func (s *trackingService) backoff(country string, attempts *int, lastErr *error) retry.Backoff {
	next := retry.WithMaxRetries(uint64(s.opts.MaxAttempts-1), retry.NewExponential(s.opts.BaseDelay))
	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := next.Next()
		if stop {
			return 0, true
		}
		s.metrics.ObserveBackoff(country, delay)
		s.log.Warn().
			Err(*lastErr).
			Int("attempt", *attempts).
			Int("max_attempts", s.opts.MaxAttempts).
			Str("country", country).
			Dur("retry_in", delay).
			Msgf("attempt %d failed, retrying in %s", *attempts, delay)
		return delay, false
	})
}

func (s *trackingService) fromCache(
	ctx context.Context,
	q domain.TrackingQuery,
	endpoint domain.EndpointConfig,
	adapter ports.ResponseAdapter,
) (*domain.TrackingResult, bool) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return nil, false
	}

	raw, ok, err := s.cache.Get(ctx, q)
	switch {
	case err != nil:
		s.metrics.ObserveCache("error")
		s.log.Warn().Err(err).Str("country", q.CountryCode).Msg("response cache lookup failed, fetching")
		return nil, false
	case !ok:
		s.metrics.ObserveCache("miss")
		return nil, false
	}

	res, err := adapter.Normalize(raw, q, endpoint)
	if err != nil {
		s.metrics.ObserveCache("miss")
		s.log.Debug().Err(err).Msg("cached payload rejected, fetching")
		return nil, false
	}
	s.metrics.ObserveCache("hit")
	s.log.Debug().Str("tracking_number", q.TrackingNumber).Msg("served from cache")
	return res, true
}

func (s *trackingService) toCache(ctx context.Context, q domain.TrackingQuery, raw json.RawMessage) {
	if s.cache == nil || s.opts.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, q, raw, s.opts.CacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache carrier response")
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return domain.KindOf(err).String()
}

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(string, string, time.Duration) {}
func (nopMetrics) ObserveBackoff(string, time.Duration)         {}
func (nopMetrics) ObserveResult(string, string)                 {}
func (nopMetrics) ObserveCache(string)                          {}
