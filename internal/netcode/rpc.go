package netcode

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"NightRunners/internal/logging"
)

// Retry defaults.
const (
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = 1 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Client executes authority requests with bounded retries and exponential
// backoff. One logical request runs its attempts strictly sequentially;
// independent requests may run concurrently and share only the auth token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	log        zerolog.Logger

	mu        sync.RWMutex
	authToken string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, HTTP/2).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxRetries sets the attempt cap.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay sets the first backoff delay; later delays double each attempt.
func WithBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithRequestTimeout sets the per-attempt timeout, independent of backoff.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient builds a retrying client for the given authority base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		timeout:    DefaultRequestTimeout,
		log:        logging.WithComponent("rpc"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthToken installs the session bearer token read by every outgoing
// request. Set once per session after login.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

// HasAuthToken reports whether a bearer token is installed.
func (c *Client) HasAuthToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken != ""
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// IsPermanentStatus reports whether an HTTP status is a permanent failure
// that must not be retried.
func IsPermanentStatus(code int) bool {
	return code >= 400 && code < 500
}

// Execute POSTs body to the endpoint with bounded retries.
//
// A 4xx response is permanent: it returns (false, responseBody) after exactly
// one attempt. Any other failure is transient and retried with a delay of
// baseDelay * 2^(attempt-1) until attempts are exhausted, then (false, "").
// An empty body is malformed local input and fails fast with no network call.
func (c *Client) Execute(ctx context.Context, endpoint, body string) (bool, string) {
	if strings.TrimSpace(body) == "" {
		c.log.Warn().Str("endpoint", endpoint).Msg("refusing request with empty body")
		return false, ""
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay << (attempt - 2)
			rpcRetries.Inc()
			select {
			case <-ctx.Done():
				return false, ""
			case <-time.After(delay):
			}
		}

		ok, respBody, permanent := c.attempt(ctx, endpoint, body)
		rpcAttempts.WithLabelValues(endpoint).Inc()
		if ok {
			return true, respBody
		}
		if permanent {
			rpcFailures.WithLabelValues(endpoint, "permanent").Inc()
			return false, respBody
		}
		if ctx.Err() != nil {
			return false, ""
		}
		c.log.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Int("max", c.maxRetries).
			Msg("transient request failure")
	}

	rpcFailures.WithLabelValues(endpoint, "exhausted").Inc()
	c.log.Warn().Str("endpoint", endpoint).Int("attempts", c.maxRetries).Msg("retries exhausted")
	return false, ""
}

func (c *Client) attempt(ctx context.Context, endpoint, body string) (ok bool, respBody string, permanent bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(body))
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("building request failed")
		return false, "", true
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and per-attempt timeouts are transient.
		return false, "", false
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return false, "", false
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, string(data), false
	case IsPermanentStatus(resp.StatusCode):
		c.log.Warn().Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("permanent request failure")
		return false, string(data), true
	default:
		return false, string(data), false
	}
}
