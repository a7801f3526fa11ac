// Package climatiq provides a client for the Climatiq emission factor
// search API, the live external source behind resolver stage 3.
package climatiq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/AvallenSolutions/alkatera-sub012/internal/resilience"
)

// ErrNoMatch is returned when the search succeeds but finds no factor.
// Callers treat it as a normal miss, not a failure.
var ErrNoMatch = eris.New("climatiq: no matching emission factor")

// SearchRequest identifies one emission factor lookup.
type SearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Region   string `json:"region,omitempty"`
}

// Factor is a single emission factor returned by the search API.
type Factor struct {
	ActivityID   string  `json:"activity_id"`
	Name         string  `json:"name"`
	Source       string  `json:"source"`
	Unit         string  `json:"unit"`
	FactorKgCO2e float64 `json:"factor"`
	Year         int     `json:"year,omitempty"`
	Region       string  `json:"region,omitempty"`
}

// Client defines the emission factor search operations.
type Client interface {
	// Search returns the best-matching emission factor for a query, or
	// ErrNoMatch if the database has none.
	Search(ctx context.Context, req SearchRequest) (*Factor, error)
}

// Option configures the HTTP client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a Climatiq search client. The per-request timeout is
// short because resolver stage 3 runs under a bounded deadline and falls
// back to the mock source on failure.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.climatiq.io",
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(4), 8),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse is the wire shape of the search endpoint.
type searchResponse struct {
	Results []struct {
		ActivityID string  `json:"activity_id"`
		Name       string  `json:"name"`
		Source     string  `json:"source"`
		Unit       string  `json:"unit"`
		Factor     float64 `json:"factor"`
		Year       int     `json:"year"`
		Region     string  `json:"region"`
	} `json:"results"`
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*Factor, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "climatiq: rate limiter")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Factor, error) {
		return c.doSearch(ctx, req)
	})
}

func (c *httpClient) doSearch(ctx context.Context, req SearchRequest) (*Factor, error) {
	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("results_per_page", "1")
	if req.Category != "" {
		q.Set("category", req.Category)
	}
	if req.Region != "" {
		q.Set("region", req.Region)
	}

	reqURL := fmt.Sprintf("%s/data/v1/search?%s", c.baseURL, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "climatiq: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "climatiq: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "climatiq: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("climatiq: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("climatiq: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "climatiq: decode response")
	}
	if len(sr.Results) == 0 {
		return nil, ErrNoMatch
	}

	r := sr.Results[0]
	return &Factor{
		ActivityID:   r.ActivityID,
		Name:         r.Name,
		Source:       r.Source,
		Unit:         r.Unit,
		FactorKgCO2e: r.Factor,
		Year:         r.Year,
		Region:       r.Region,
	}, nil
}
