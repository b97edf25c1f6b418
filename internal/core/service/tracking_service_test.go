package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
	"github.com/owen-raum/dpd-tracking/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubRegistry struct {
	endpoints map[string]domain.EndpointConfig
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{endpoints: map[string]domain.EndpointConfig{
		"AT": {Country: "AT", SearchEndpoint: "https://carrier.example/search", VerifyEndpoint: "https://carrier.example/verify"},
		"DE": {Country: "DE", Endpoint: "https://carrier.example/plc/"},
	}}
}

func (r *stubRegistry) Resolve(code string) (domain.EndpointConfig, error) {
	ep, ok := r.endpoints[strings.ToUpper(code)]
	if !ok {
		return domain.EndpointConfig{}, domain.UnsupportedCountry(code, r.Supported())
	}
	return ep, nil
}

func (r *stubRegistry) Supported() []string { return []string{"AT", "DE"} }

// stubTransport replays scripted responses; the last one repeats.
type stubTransport struct {
	mu        sync.Mutex
	calls     int
	responses []stubResponse
	onCall    func(ctx context.Context, n int) error
}

type stubResponse struct {
	raw string
	err error
}

func (t *stubTransport) Fetch(ctx context.Context, _ domain.EndpointConfig, _ domain.TrackingQuery) (json.RawMessage, error) {
	t.mu.Lock()
	t.calls++
	n := t.calls
	t.mu.Unlock()

	if t.onCall != nil {
		if err := t.onCall(ctx, n); err != nil {
			return nil, err
		}
	}
	i := n - 1
	if i >= len(t.responses) {
		i = len(t.responses) - 1
	}
	r := t.responses[i]
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.raw), nil
}

func (t *stubTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// stubAdapter understands {"events": ["desc", ...], "zip": "..."}.
type stubAdapter struct{}

func (stubAdapter) Format() domain.ResponseFormat { return domain.FormatLifecycle }

func (stubAdapter) Normalize(raw json.RawMessage, q domain.TrackingQuery, _ domain.EndpointConfig) (*domain.TrackingResult, error) {
	var body struct {
		Events []string `json:"events"`
		Zip    string   `json:"zip"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, domain.Transient(err)
	}
	if q.WantsVerify() && body.Zip != "" && body.Zip != q.PostalCode {
		return nil, domain.PostalCodeMismatch(q.PostalCode, body.Zip)
	}
	events := make([]domain.TrackingEvent, 0, len(body.Events))
	for _, d := range body.Events {
		events = append(events, domain.TrackingEvent{Timestamp: time.Unix(0, 0), Description: d})
	}
	return domain.NewTrackingResult(q.TrackingNumber, q.CountryCode, events, raw)
}

type stubAdapters struct{}

func (stubAdapters) For(domain.EndpointConfig) (ports.ResponseAdapter, error) { return stubAdapter{}, nil }

type recordingMetrics struct {
	mu       sync.Mutex
	backoffs []time.Duration
	attempts []string
	results  []string
	cache    []string
}

func (m *recordingMetrics) ObserveAttempt(_, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, outcome)
}

func (m *recordingMetrics) ObserveBackoff(_ string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoffs = append(m.backoffs, d)
}

func (m *recordingMetrics) ObserveResult(_, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, outcome)
}

func (m *recordingMetrics) ObserveCache(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = append(m.cache, result)
}

type memoryCache struct {
	entries map[string]json.RawMessage
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]json.RawMessage)}
}

func (c *memoryCache) key(q domain.TrackingQuery) string {
	return q.CountryCode + ":" + q.TrackingNumber + ":" + q.PostalCode
}

func (c *memoryCache) Get(_ context.Context, q domain.TrackingQuery) (json.RawMessage, bool, error) {
	raw, ok := c.entries[c.key(q)]
	return raw, ok, nil
}

func (c *memoryCache) Set(_ context.Context, q domain.TrackingQuery, raw json.RawMessage, _ time.Duration) error {
	c.sets++
	c.entries[c.key(q)] = raw
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const (
	okPayload    = `{"events": ["Delivered", "In transit"]}`
	emptyPayload = `{"events": []}`
	testBase     = 5 * time.Millisecond
)

var errHTTP500 = domain.Transient(errors.New("HTTP 500: Internal Server Error"))

func newTestService(transport *stubTransport, metrics ports.TrackingMetrics, cache ports.ResponseCache, opts Options) ports.Tracker {
	if opts.BaseDelay == 0 {
		opts.BaseDelay = testBase
	}
	return NewTrackingService(newStubRegistry(), transport, stubAdapters{}, cache, metrics, opts, zerolog.Nop())
}

// ---------------------------------------------------------------------------
// Track tests
// ---------------------------------------------------------------------------

func TestTrackingService_Track_Success(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: okPayload}}}
	svc := newTestService(transport, nil, nil, Options{})

	res, err := svc.Track(context.Background(), domain.NewTrackingQuery("01234567890123", "", "at"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || len(res.Events) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Country != "AT" {
		t.Errorf("expected country AT, got %q", res.Country)
	}
	if transport.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", transport.Calls())
	}
}

func TestTrackingService_Track_RecoversAfterTransientFailure(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{err: errHTTP500}, {raw: okPayload}}}
	metrics := &recordingMetrics{}
	svc := newTestService(transport, metrics, nil, Options{})

	if _, err := svc.Track(context.Background(), domain.NewTrackingQuery("1", "", "AT")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transport.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", transport.Calls())
	}
	if got := strings.Join(metrics.attempts, ","); got != "transient,success" {
		t.Errorf("unexpected attempt outcomes: %s", got)
	}
}

func TestTrackingService_Track_ExhaustsRetries(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{err: errHTTP500}}}
	metrics := &recordingMetrics{}
	svc := newTestService(transport, metrics, nil, Options{MaxAttempts: 3})

	_, err := svc.Track(context.Background(), domain.NewTrackingQuery("1", "", "AT"))

	if !errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if transport.Calls() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", transport.Calls())
	}
	// Backoff runs between attempts only: base, then 2×base, nothing after the last.
	want := []time.Duration{testBase, 2 * testBase}
	if len(metrics.backoffs) != len(want) || metrics.backoffs[0] != want[0] || metrics.backoffs[1] != want[1] {
		t.Errorf("expected backoffs %v, got %v", want, metrics.backoffs)
	}
	if err.Error() != "Failed after 3 attempts: HTTP 500: Internal Server Error" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Attempts != 3 {
		t.Errorf("expected Attempts=3 on error, got %+v", derr)
	}
	if len(metrics.results) != 1 || metrics.results[0] != "retries_exhausted" {
		t.Errorf("unexpected results metric: %v", metrics.results)
	}
}

func TestTrackingService_Track_MaxAttemptsBelowOneUsesDefault(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{err: errHTTP500}}}
	svc := newTestService(transport, nil, nil, Options{MaxAttempts: -4, BaseDelay: time.Millisecond})

	_, _ = svc.Track(context.Background(), domain.NewTrackingQuery("1", "", "AT"))

	if transport.Calls() != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, transport.Calls())
	}
}

func TestTrackingService_Track_NotFoundIsNotRetried(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: emptyPayload}}}
	metrics := &recordingMetrics{}
	svc := newTestService(transport, metrics, nil, Options{})

	_, err := svc.Track(context.Background(), domain.NewTrackingQuery("01234567890123", "", "AT"))

	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if transport.Calls() != 1 {
		t.Errorf("expected exactly 1 call, got %d", transport.Calls())
	}
	if !strings.Contains(err.Error(), "01234567890123") {
		t.Errorf("message must name the tracking number: %q", err.Error())
	}
	if len(metrics.backoffs) != 0 {
		t.Errorf("expected no backoff, got %v", metrics.backoffs)
	}
}

func TestTrackingService_Track_UnsupportedCountryMakesNoCalls(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: okPayload}}}
	svc := newTestService(transport, nil, nil, Options{})

	_, err := svc.Track(context.Background(), domain.NewTrackingQuery("1", "", "FR"))

	if !errors.Is(err, domain.ErrUnsupportedCountry) {
		t.Fatalf("expected ErrUnsupportedCountry, got %v", err)
	}
	if transport.Calls() != 0 {
		t.Errorf("expected no HTTP calls, got %d", transport.Calls())
	}
}

func TestTrackingService_Track_MalformedCountryIsUnsupported(t *testing.T) {
	for _, code := range []string{"FRA", "X", "F1"} {
		transport := &stubTransport{responses: []stubResponse{{raw: okPayload}}}
		svc := newTestService(transport, nil, nil, Options{})

		_, err := svc.Track(context.Background(), domain.NewTrackingQuery("1", "", code))

		if !errors.Is(err, domain.ErrUnsupportedCountry) {
			t.Fatalf("%s: expected ErrUnsupportedCountry, got %v", code, err)
		}
		if transport.Calls() != 0 {
			t.Errorf("%s: expected no HTTP calls, got %d", code, transport.Calls())
		}
	}
}

func TestTrackingService_Track_InvalidQueryMakesNoCalls(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: okPayload}}}
	svc := newTestService(transport, nil, nil, Options{})

	_, err := svc.Track(context.Background(), domain.NewTrackingQuery("   ", "", "AT"))

	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if transport.Calls() != 0 {
		t.Errorf("expected no HTTP calls, got %d", transport.Calls())
	}
}

func TestTrackingService_Track_PostalCodeMismatchIsNotRetried(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: `{"events": ["x"], "zip": "1010"}`}}}
	svc := newTestService(transport, nil, nil, Options{})

	_, err := svc.Track(context.Background(), domain.NewTrackingQuery("1", "1020", "DE"))

	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Kind != domain.KindPostalCodeMismatch {
		t.Fatalf("expected postal code mismatch, got %v", err)
	}
	if derr.Expected != "1020" || derr.Actual != "1010" {
		t.Errorf("expected 1020/1010, got %s/%s", derr.Expected, derr.Actual)
	}
	if transport.Calls() != 1 {
		t.Errorf("expected exactly 1 call, got %d", transport.Calls())
	}
}

func TestTrackingService_Track_AttemptTimeoutIsTransient(t *testing.T) {
	transport := &stubTransport{
		responses: []stubResponse{{raw: okPayload}},
		onCall: func(ctx context.Context, _ int) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	svc := newTestService(transport, nil, nil, Options{MaxAttempts: 2, AttemptTimeout: 10 * time.Millisecond})

	_, err := svc.Track(context.Background(), domain.NewTrackingQuery("1", "", "AT"))

	if !errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
	if transport.Calls() != 2 {
		t.Errorf("expected 2 attempts, got %d", transport.Calls())
	}
}

func TestTrackingService_Track_CancelDuringRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &stubTransport{
		responses: []stubResponse{{raw: okPayload}},
		onCall: func(ctx context.Context, _ int) error {
			cancel()
			<-ctx.Done()
			return domain.Transient(ctx.Err())
		},
	}
	metrics := &recordingMetrics{}
	svc := newTestService(transport, metrics, nil, Options{})

	_, err := svc.Track(ctx, domain.NewTrackingQuery("1", "", "AT"))

	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if errors.Is(err, domain.ErrRetriesExhausted) {
		t.Error("cancellation must not look like exhaustion")
	}
	if transport.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", transport.Calls())
	}
	if len(metrics.backoffs) != 0 {
		t.Errorf("expected no retry scheduled, got %v", metrics.backoffs)
	}
}

func TestTrackingService_Track_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &stubTransport{responses: []stubResponse{{err: errHTTP500}}}
	svc := newTestService(transport, nil, nil, Options{BaseDelay: time.Hour})

	time.AfterFunc(20*time.Millisecond, cancel)
	start := time.Now()
	_, err := svc.Track(ctx, domain.NewTrackingQuery("1", "", "AT"))

	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation did not interrupt the backoff sleep")
	}
	if transport.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", transport.Calls())
	}
}

// ---------------------------------------------------------------------------
// Cache tests
// ---------------------------------------------------------------------------

func TestTrackingService_Track_StoresAndServesFromCache(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: okPayload}}}
	cache := newMemoryCache()
	metrics := &recordingMetrics{}
	svc := newTestService(transport, metrics, cache, Options{CacheTTL: time.Minute})
	q := domain.NewTrackingQuery("1", "", "AT")

	if _, err := svc.Track(context.Background(), q); err != nil {
		t.Fatalf("first track: %v", err)
	}
	res, err := svc.Track(context.Background(), q)
	if err != nil {
		t.Fatalf("second track: %v", err)
	}

	if transport.Calls() != 1 {
		t.Errorf("expected the second lookup to be served from cache, got %d calls", transport.Calls())
	}
	if cache.sets != 1 {
		t.Errorf("expected 1 cache write, got %d", cache.sets)
	}
	if len(res.Events) != 2 {
		t.Errorf("unexpected cached result: %+v", res)
	}
	if got := strings.Join(metrics.cache, ","); got != "miss,hit" {
		t.Errorf("unexpected cache outcomes: %s", got)
	}
}

func TestTrackingService_Track_FailuresAreNotCached(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: emptyPayload}}}
	cache := newMemoryCache()
	svc := newTestService(transport, nil, cache, Options{CacheTTL: time.Minute})

	_, _ = svc.Track(context.Background(), domain.NewTrackingQuery("1", "", "AT"))

	if cache.sets != 0 {
		t.Errorf("expected no cache writes, got %d", cache.sets)
	}
}

func TestTrackingService_Track_CacheDisabledWithoutTTL(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{{raw: okPayload}}}
	cache := newMemoryCache()
	svc := newTestService(transport, nil, cache, Options{})
	q := domain.NewTrackingQuery("1", "", "AT")

	_, _ = svc.Track(context.Background(), q)
	_, _ = svc.Track(context.Background(), q)

	if transport.Calls() != 2 || cache.sets != 0 {
		t.Errorf("expected cache to be bypassed, calls=%d sets=%d", transport.Calls(), cache.sets)
	}
}
