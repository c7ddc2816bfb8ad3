// Package billing is the HTTP adapter for the subscription-billing service.
// It owns authentication, rate-limit tracking, and retry policy; the typed
// endpoint wrappers in endpoints.go sit on top of Do.
package billing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL            = "https://v3.recurly.com"
	defaultMaxRetries         = 3
	defaultBackoffBase        = 2
	defaultBackoffMaxSeconds  = 30
	defaultRateLimitThreshold = 10
	defaultRequestTimeout     = 30 * time.Second

	// Rate-limit retries are budgeted separately from normal retries.
	maxRateLimitRetries  = 5
	pacingDelay          = time.Second
	defaultRateLimitWait = 5 * time.Second
	minRateLimitWait     = time.Second

	acceptVersion   = "application/vnd.recurly.v2021-02-25"
	subdomainHeader = "X-Recurly-Subdomain"

	headerRateLimitRemaining = "x-ratelimit-remaining"
	headerRateLimitReset     = "x-ratelimit-reset"

	maxResponseBytes = 4 << 20
)

// RateLimitSnapshot mirrors the last rate-limit headers seen on this client.
// Nil fields mean the server has not reported that value yet.
type RateLimitSnapshot struct {
	Remaining         *int
	ResetEpochSeconds *int64
}

// Response is the raw outcome of a successful (2xx) request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Config struct {
	// APIKey is the private billing API key. Required.
	APIKey  string
	BaseURL string
	// Subdomain routes requests to a tenant site when set.
	Subdomain string

	MaxRetries         int
	BackoffBase        int
	BackoffMaxSeconds  int
	RateLimitThreshold int
	RequestTimeout     time.Duration

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client issues authenticated requests against the billing API with bounded
// retries. A Client is owned by a single sequential caller; its rate-limit
// snapshot is not safe for concurrent use.
type Client struct {
	baseURL    string
	authHeader string
	subdomain  string

	maxRetries         int
	backoffBase        int
	backoffMaxSeconds  int
	rateLimitThreshold int
	requestTimeout     time.Duration

	httpClient *http.Client
	logger     zerolog.Logger
	rateLimit  RateLimitSnapshot

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffMaxSeconds <= 0 {
		cfg.BackoffMaxSeconds = defaultBackoffMaxSeconds
	}
	if cfg.RateLimitThreshold <= 0 {
		cfg.RateLimitThreshold = defaultRateLimitThreshold
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	credential := base64.StdEncoding.EncodeToString([]byte(cfg.APIKey + ":"))

	return &Client{
		baseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		authHeader:         "Basic " + credential,
		subdomain:          cfg.Subdomain,
		maxRetries:         cfg.MaxRetries,
		backoffBase:        cfg.BackoffBase,
		backoffMaxSeconds:  cfg.BackoffMaxSeconds,
		rateLimitThreshold: cfg.RateLimitThreshold,
		requestTimeout:     cfg.RequestTimeout,
		httpClient:         cfg.HTTPClient,
		logger:             cfg.Logger,
		sleep:              sleepContext,
		now:                time.Now,
	}, nil
}

// RateLimit returns a copy of the last observed rate-limit state.
func (c *Client) RateLimit() RateLimitSnapshot {
	snapshot := RateLimitSnapshot{}
	if c.rateLimit.Remaining != nil {
		remaining := *c.rateLimit.Remaining
		snapshot.Remaining = &remaining
	}
	if c.rateLimit.ResetEpochSeconds != nil {
		reset := *c.rateLimit.ResetEpochSeconds
		snapshot.ResetEpochSeconds = &reset
	}
	return snapshot
}

func (c *Client) Subdomain() string {
	return c.subdomain
}

// Do issues one logical request. Transient network failures and 5xx responses
// retry with exponential backoff up to MaxRetries; 429 responses wait for the
// advertised reset and retry on a separate bounded budget; other 4xx fail
// immediately.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = encoded
	}

	attempt := 0
	rateLimitRetries := 0

	for {
		if err := c.paceForRateLimit(ctx); err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			if !isTransient(err) {
				return nil, fmt.Errorf("%s %s: %w", method, path, err)
			}
			if attempt >= c.maxRetries {
				if isTimeout(err) {
					return nil, &TimeoutError{cause: err}
				}
				return nil, &NetworkError{cause: err}
			}
			attempt++
			delay := c.backoffDelay(attempt)
			c.logger.Debug().
				Str("method", method).
				Str("path", path).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("transient network error, retrying")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		c.observeRateLimit(resp.Header)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			rateLimitRetries++
			if rateLimitRetries > maxRateLimitRetries {
				return nil, &RateLimitError{Retries: maxRateLimitRetries}
			}
			wait := c.rateLimitWait()
			c.logger.Warn().
				Str("method", method).
				Str("path", path).
				Int("retry", rateLimitRetries).
				Dur("wait", wait).
				Msg("rate limited, waiting for reset")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
			return resp, nil

		case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
			return nil, newRequestError(resp)

		case resp.StatusCode >= http.StatusInternalServerError:
			if attempt >= c.maxRetries {
				return nil, &ServerError{StatusCode: resp.StatusCode, Attempts: attempt + 1}
			}
			attempt++
			delay := c.backoffDelay(attempt)
			c.logger.Debug().
				Str("method", method).
				Str("path", path).
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("server error, retrying")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue

		default:
			return nil, fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, path)
		}
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(requestCtx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", acceptVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.subdomain != "" {
		req.Header.Set(subdomainHeader, c.subdomain)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		// Caller cancellation is not a transient transport failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

// backoffDelay is min(base^attempt, cap) seconds for the given 1-based retry
// attempt.
func (c *Client) backoffDelay(attempt int) time.Duration {
	seconds := math.Pow(float64(c.backoffBase), float64(attempt))
	if seconds > float64(c.backoffMaxSeconds) {
		seconds = float64(c.backoffMaxSeconds)
	}
	return time.Duration(seconds * float64(time.Second))
}

// paceForRateLimit inserts a fixed admission delay when the remaining call
// budget reported by the server dips below the configured threshold.
func (c *Client) paceForRateLimit(ctx context.Context) error {
	if c.rateLimit.Remaining == nil || *c.rateLimit.Remaining >= c.rateLimitThreshold {
		return nil
	}

	c.logger.Debug().
		Int("remaining", *c.rateLimit.Remaining).
		Int("threshold", c.rateLimitThreshold).
		Msg("rate-limit budget low, pacing")

	return c.sleep(ctx, pacingDelay)
}

func (c *Client) rateLimitWait() time.Duration {
	if c.rateLimit.ResetEpochSeconds == nil {
		return defaultRateLimitWait
	}

	wait := time.Unix(*c.rateLimit.ResetEpochSeconds, 0).Sub(c.now())
	if wait < minRateLimitWait {
		wait = minRateLimitWait
	}
	return wait
}

func (c *Client) observeRateLimit(header http.Header) {
	if raw := header.Get(headerRateLimitRemaining); raw != "" {
		if remaining, err := strconv.Atoi(raw); err == nil {
			c.rateLimit.Remaining = &remaining
		}
	}
	if raw := header.Get(headerRateLimitReset); raw != "" {
		if reset, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.rateLimit.ResetEpochSeconds = &reset
		}
	}
}

func newRequestError(resp *Response) *RequestError {
	message := serverMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		message = "invalid API credential, check the configured key"
	case http.StatusForbidden:
		message = "API credential lacks permission for this operation"
	case http.StatusNotFound:
		if message == "" {
			message = "resource not found"
		}
	default:
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
	}

	return &RequestError{StatusCode: resp.StatusCode, Message: message, Body: resp.Body}
}

func serverMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return envelope.Message
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isTransient reports whether err looks like a recoverable transport failure:
// timeouts, connection resets/refusals, DNS failures, broken pipes, and
// truncated responses.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if isTimeout(err) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	text := strings.ToLower(err.Error())
	return strings.Contains(text, "connection reset") ||
		strings.Contains(text, "connection refused") ||
		strings.Contains(text, "broken pipe") ||
		strings.Contains(text, "no such host")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
