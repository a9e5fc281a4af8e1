package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	signatureTimeout  = 30 * time.Second
	signatureMaxBytes = 1 << 20
)

// SignatureFetcher loads JSAPI signatures from a consumer supplied endpoint.
// The endpoint contract is a plain GET returning the platform's signature JSON.
type SignatureFetcher struct {
	client  *http.Client
	limiter *rate.Limiter // nil = unlimited
	logger  *slog.Logger
}

// FetcherOption configures a SignatureFetcher.
type FetcherOption func(*SignatureFetcher)

// WithClient sets the HTTP client (default: 30s timeout).
func WithClient(c *http.Client) FetcherOption {
	return func(f *SignatureFetcher) { f.client = c }
}

// WithRateLimit caps signature requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) FetcherOption {
	return func(f *SignatureFetcher) { f.limiter = rate.NewLimiter(r, burst) }
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *SignatureFetcher) { f.logger = l }
}

// NewSignatureFetcher creates a fetcher.
func NewSignatureFetcher(opts ...FetcherOption) *SignatureFetcher {
	f := &SignatureFetcher{
		client: &http.Client{Timeout: signatureTimeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs rawURL and decodes the JSON body into out. Every failure is a
// *SignatureFetchError.
func (f *SignatureFetcher) Fetch(ctx context.Context, rawURL string, out any) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return &SignatureFetchError{URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &SignatureFetchError{URL: rawURL, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return &SignatureFetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, signatureMaxBytes))
	if err != nil {
		return &SignatureFetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SignatureFetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &SignatureFetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("decode signature: %w", err)}
	}

	f.logger.Debug("signature fetched", "url", rawURL, "request_id", reqID, "duration", time.Since(start))
	return nil
}
