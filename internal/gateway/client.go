package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

// DefaultBaseURL is used when no API base is configured.
const DefaultBaseURL = "http://localhost:5123/api"

const maxBodySize = 4 << 20

// Authenticator is the view of the session the gateway needs: the current
// credential and a way to end the session after the server rejected it.
type Authenticator interface {
	Credential() string
	Expire(ctx context.Context, used string)
}

// Config holds configuration for the gateway client
type Config struct {
	BaseURL string
	Timeout time.Duration

	// EnableCircuitBreaker fails fast after FailureThreshold consecutive
	// transport failures.
	EnableCircuitBreaker bool
	FailureThreshold     int
	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration

	// EnableRetry retries GET requests on transport failures and 502/503/504.
	EnableRetry  bool
	MaxAttempts  int
	InitialDelay time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultConfig returns defaults suited to a mobile connection.
func DefaultConfig() Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		Timeout:              15 * time.Second,
		EnableCircuitBreaker: true,
		FailureThreshold:     3,
		BreakerTimeout:       30 * time.Second,
		EnableRetry:          true,
		MaxAttempts:          3,
		InitialDelay:         500 * time.Millisecond,
	}
}

type response struct {
	status int
	body   []byte
}

// Client sends authenticated JSON requests to the remote API.
type Client struct {
	baseURL string
	http    *http.Client
	auth    Authenticator
	breaker circuitbreaker.CircuitBreaker[*response]
	retrier retry.Retry[*response]
	logger  *slog.Logger
}

// NewClient creates a gateway client. auth may be nil for unauthenticated
// use, such as the login and register calls of a fresh install.
func NewClient(auth Authenticator, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		auth:    auth,
		logger:  cfg.Logger,
	}

	if cfg.EnableCircuitBreaker {
		threshold := cfg.FailureThreshold
		if threshold <= 0 {
			threshold = 3
		}
		timeout := cfg.BreakerTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.breaker = circuitbreaker.New[*response](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     timeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= threshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				c.logger.Warn("circuit breaker state change",
					"base_url", c.baseURL,
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		attempts := cfg.MaxAttempts
		if attempts <= 0 {
			attempts = 3
		}
		delay := cfg.InitialDelay
		if delay <= 0 {
			delay = 500 * time.Millisecond
		}
		c.retrier = retry.New[*response](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  delay,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	return c
}

// newHTTPClient mirrors the transport tuning used for long lived API
// clients, with a short overall timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do performs one API call. The error is one of:
//   - domain.ErrSessionExpired after a 401 to a request that carried a
//     credential, once the session was expired
//   - *RequestFailedError for any other non-2xx status, including a 401
//     to an unauthenticated call such as a failed login
//   - domain.ErrNetworkUnavailable (wrapped) when the server could not be
//     reached or the circuit is open
//   - the caller's context.Canceled, or a request construction error, as is
//
// No state changes on failure except for the 401 case.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	// the credential is read once so a 401 expires exactly what was sent
	var credential string
	if c.auth != nil {
		credential = c.auth.Credential()
	}

	requestID := uuid.NewString()
	req, err := c.newRequest(ctx, method, path, payload, credential, requestID)
	if err != nil {
		return err
	}
	start := time.Now()

	resp, err := c.execute(ctx, method, func(ctx context.Context) (*response, error) {
		return c.attempt(ctx, req)
	})
	if err != nil {
		c.logger.DebugContext(ctx, "api request failed",
			"method", method, "path", path, "request_id", requestID, "error", err)
		return classify(err)
	}

	c.logger.DebugContext(ctx, "api request",
		"method", method,
		"path", path,
		"status", resp.status,
		"request_id", requestID,
		"duration", time.Since(start))

	switch {
	case resp.status == http.StatusUnauthorized && credential != "":
		c.auth.Expire(ctx, credential)
		return domain.ErrSessionExpired
	case resp.status < 200 || resp.status > 299:
		return requestFailed(resp.status, resp.body)
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrRequestFailed, err)
	}
	return nil
}

// execute applies retry (GET only) inside the circuit breaker. Retryable
// statuses travel as statusError through fortify and are turned back into
// plain responses here so they never count as transport failures.
func (c *Client) execute(ctx context.Context, method string, op func(context.Context) (*response, error)) (*response, error) {
	var run func(context.Context) (*response, error)
	if c.retrier != nil && method == http.MethodGet {
		run = func(ctx context.Context) (*response, error) {
			return unwrapStatus(c.retrier.Do(ctx, op))
		}
	} else {
		run = func(ctx context.Context) (*response, error) {
			return unwrapStatus(op(ctx))
		}
	}

	if c.breaker != nil {
		return c.breaker.Execute(ctx, run)
	}
	return run(ctx)
}

func unwrapStatus(resp *response, err error) (*response, error) {
	var se *statusError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	return resp, err
}

// newRequest builds the request once so a malformed URL is reported as
// such and never reaches the circuit breaker.
func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, credential, requestID string) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req, nil
}

func (c *Client) attempt(ctx context.Context, tmpl *http.Request) (*response, error) {
	req := tmpl.Clone(ctx)
	if tmpl.GetBody != nil {
		body, err := tmpl.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		req.Body = body
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read response: %w", err)}
	}

	resp := &response{status: httpResp.StatusCode, body: data}
	switch resp.status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, &statusError{resp: resp}
	}
	return resp, nil
}

// isRetryable reports whether a GET may be attempted again.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return true
	}
	var te *transportError
	return errors.As(err, &te) && !errors.Is(err, context.Canceled)
}
