// Package carrier talks to the DPD tracking endpoints: one HTTP exchange per
// Fetch, plus the adapters that normalize each upstream payload shape.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/owen-raum/dpd-tracking/internal/core/domain"
)

// DefaultUserAgent identifies the tool to the carrier.
const DefaultUserAgent = "Mozilla/5.0 (compatible; dpd-tracking/Go; +https://github.com/owen-raum/dpd-tracking)"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// Doer is the part of *http.Client the transport needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs single tracking requests. It never retries.
type Client struct {
	http      Doer
	userAgent string
}

// NewClient returns a Client using an instrumented *http.Client.
// An empty userAgent selects DefaultUserAgent.
func NewClient(userAgent string) *Client {
	return NewClientWithDoer(NewHTTPClient(), userAgent)
}

// NewClientWithDoer returns a Client that sends requests through doer.
func NewClientWithDoer(doer Doer, userAgent string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{http: doer, userAgent: userAgent}
}

// NewHTTPClient builds the *http.Client used for carrier calls. Timeouts are
// applied per attempt through the request context, so none is set here.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(transport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "carrier " + r.Method + " " + r.URL.Host
			}),
		),
	}
}

// Fetch issues one request for q and returns the raw response body.
// Every failure is a domain.KindTransient error.
func (c *Client) Fetch(ctx context.Context, endpoint domain.EndpointConfig, q domain.TrackingQuery) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, endpoint, q)
	if err != nil {
		return nil, domain.Transient(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("request %s: %w", req.URL.Redacted(), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, domain.Transient(fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("read response body: %w", err))
	}
	if !json.Valid(body) {
		return nil, domain.Transient(fmt.Errorf("response from %s is not valid JSON", req.URL.Host))
	}
	return json.RawMessage(body), nil
}

// newRequest builds the request for the endpoint topology: a JSON POST of
// tn or [tn, postalCode] for dual endpoints, a GET of the templated URL otherwise.
func (c *Client) newRequest(ctx context.Context, endpoint domain.EndpointConfig, q domain.TrackingQuery) (*http.Request, error) {
	target := endpoint.URLFor(q)

	var (
		req *http.Request
		err error
	)
	switch endpoint.Topology() {
	case domain.TopologyDual:
		var payload any = q.TrackingNumber
		if q.WantsVerify() {
			payload = []string{q.TrackingNumber, q.PostalCode}
		}
		body, mErr := json.Marshal(payload)
		if mErr != nil {
			return nil, fmt.Errorf("encode payload: %w", mErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", endpoint.Country, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}
