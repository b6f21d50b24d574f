// Package exchange holds the plumbing shared by the per-venue adapters: a
// JSON HTTP client that classifies failures, a retry helper and the adapter
// registry.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Options configures one venue adapter.
type Options struct {
	BaseURL       string
	MakerFee      decimal.Decimal
	TakerFee      decimal.Decimal
	RetryAttempts int
	RetryBackoff  time.Duration
	// HTTPClient overrides the default client; tests point it at httptest.
	HTTPClient *http.Client
}

// Fees builds the FeeSchedule for ex from the configured rates.
func (o Options) Fees(ex domain.ExchangeID) domain.FeeSchedule {
	return domain.FeeSchedule{Exchange: ex, Maker: o.MakerFee, Taker: o.TakerFee}
}

// BaseURLOr returns the configured base URL or def when none is set.
func (o Options) BaseURLOr(def string) string {
	if s := strings.TrimRight(strings.TrimSpace(o.BaseURL), "/"); s != "" {
		return s
	}
	return def
}

// StatusError records a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// HTTPClient performs JSON GET requests against one exchange REST API.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// NewHTTPClient creates a client for baseURL. Per-request deadlines come from
// the caller's context; the http.Client timeout is only a backstop.
func NewHTTPClient(baseURL string, opts Options) *HTTPClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		attempts: attempts,
		backoff:  backoff,
	}
}

// BaseURL returns the API root the client talks to.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// GetJSON requests path with query and decodes the body into out. Failures
// are returned as *domain.UnavailableError.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return WithRetry(ctx, c.attempts, c.backoff, Retryable, func(ctx context.Context) error {
		body, err := c.get(ctx, u)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return domain.Unavailable(domain.ReasonMalformed, fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	})
}

func (c *HTTPClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.Unavailable(domain.ReasonNetwork, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.Unavailable(domain.ReasonBadStatus, &StatusError{Code: resp.StatusCode, Body: string(snippet)})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	return body, nil
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Unavailable(domain.ReasonTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.Unavailable(domain.ReasonTimeout, err)
	}
	return domain.Unavailable(domain.ReasonNetwork, err)
}

// Retryable reports whether a failed request is worth repeating: transport
// failures and 5xx responses are, everything else is not.
func Retryable(err error) bool {
	switch domain.ReasonOf(err) {
	case domain.ReasonNetwork:
		return true
	case domain.ReasonBadStatus:
		var se *StatusError
		return errors.As(err, &se) && se.Code >= 500
	default:
		return false
	}
}

// ParsePrice parses a decimal price string returned by an exchange.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, domain.Unavailable(domain.ReasonMalformed, errors.New("empty price field"))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.Unavailable(domain.ReasonMalformed, fmt.Errorf("parse price %q: %w", s, err))
	}
	return d, nil
}
