// Package dispatch issues authenticated requests against the upstream API.
// A single Dispatcher paces every outbound call through one shared limiter,
// attaches the bearer token, and retries transient failures with exponential
// backoff.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/snooproxy/internal/metrics"
	pkgerrs "github.com/snooproxy/pkg/errors"
)

const (
	// DefaultInterval spaces outbound calls so sustained throughput stays
	// just under the upstream's public quota of roughly one call per
	// second.
	DefaultInterval = 1100 * time.Millisecond

	// DefaultRetries is the number of additional attempts made after a
	// request fails with a retryable condition.
	DefaultRetries = 3

	parseFloatBitSize = 64

	// maxErrorBodyBytes caps how much of an error response is carried on
	// the returned error.
	maxErrorBodyBytes = 2048
)

// TokenSource supplies a currently valid bearer token. Implementations are
// expected to refresh behind this call when needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config carries the dispatcher dependencies and tunables.
type Config struct {
	// HTTPClient is used for all outbound calls. Defaults to
	// http.DefaultClient when nil.
	HTTPClient *http.Client

	// BaseURL is the upstream API host every path is resolved against.
	BaseURL string

	// UserAgent is attached to every request.
	UserAgent string

	// Tokens supplies bearer tokens. Required.
	Tokens TokenSource

	// Interval is the minimum spacing between outbound calls. Defaults to
	// DefaultInterval when zero.
	Interval time.Duration

	// Retries is the retry budget for transient failures. Zero means
	// DefaultRetries; negative disables retrying.
	Retries int

	Logger zerolog.Logger
}

// Dispatcher is the single egress point for upstream traffic. All methods
// are safe for concurrent use; concurrent callers share the pacing interval
// rather than each getting their own.
type Dispatcher struct {
	client    *http.Client
	baseURL   *url.URL
	userAgent string
	tokens    TokenSource
	limiter   *rate.Limiter
	retries   int
	logger    zerolog.Logger

	mu             sync.Mutex
	forceWaitUntil time.Time

	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher from the given configuration.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Tokens == nil {
		return nil, &pkgerrs.ConfigError{Field: "Tokens", Message: "token source is required"}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "BaseURL", Message: fmt.Sprintf("failed to parse %q: %v", cfg.BaseURL, err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = DefaultRetries
	}
	if retries < 0 {
		retries = 0
	}

	return &Dispatcher{
		client:      httpClient,
		baseURL:     parsedURL,
		userAgent:   cfg.UserAgent,
		tokens:      cfg.Tokens,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		retries:     retries,
		logger:      cfg.Logger,
		backoffBase: time.Second,
		sleep:       sleepContext,
	}, nil
}

// Get issues a paced GET against the given API path.
func (d *Dispatcher) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return d.do(ctx, http.MethodGet, path, query, nil)
}

// PostForm issues a paced POST with a form-encoded body against the given
// API path.
func (d *Dispatcher) PostForm(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	return d.do(ctx, http.MethodPost, path, nil, form)
}

// do runs the retry loop. Each attempt re-enters the pacing queue and
// re-fetches the token, so a retry never reuses a stale credential and never
// jumps ahead of other callers.
func (d *Dispatcher) do(ctx context.Context, method, path string, query, form url.Values) (json.RawMessage, error) {
	u, err := d.baseURL.Parse(path)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "path", Message: fmt.Sprintf("failed to resolve %q: %v", path, err)}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		payload, err := d.attempt(ctx, method, u, form)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if attempt > d.retries {
			break
		}

		metrics.UpstreamRetries.WithLabelValues(retryReason(err)).Inc()
		delay := d.backoffBase << (attempt - 1)
		d.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("upstream request failed, backing off before retry")
		if err := d.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	setAttempts(lastErr, d.retries+1)
	d.logger.Warn().
		Str("method", method).
		Str("path", path).
		Int("attempts", d.retries+1).
		Err(lastErr).
		Msg("retry budget exhausted")
	return nil, lastErr
}

// attempt performs one paced, authenticated request and classifies its
// outcome into the error taxonomy.
func (d *Dispatcher) attempt(ctx context.Context, method string, u *url.URL, form url.Values) (json.RawMessage, error) {
	if err := d.waitForPacing(ctx); err != nil {
		return nil, err
	}

	token, err := d.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", d.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(method, metrics.OutcomeNetwork).Inc()
		return nil, &pkgerrs.TransportError{Attempts: 1, Err: err}
	}
	defer resp.Body.Close()

	d.applyRateHeaders(resp)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.UpstreamRequests.WithLabelValues(method, metrics.OutcomeRateLimited).Inc()
		io.Copy(io.Discard, resp.Body)
		return nil, &pkgerrs.RateLimitError{Attempts: 1, RetryAfter: retryAfterHint(resp)}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		outcome := metrics.OutcomeClientError
		if resp.StatusCode >= 500 {
			outcome = metrics.OutcomeServerError
		}
		metrics.UpstreamRequests.WithLabelValues(method, outcome).Inc()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &pkgerrs.APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(method, metrics.OutcomeNetwork).Inc()
		return nil, &pkgerrs.TransportError{Attempts: 1, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	metrics.UpstreamRequests.WithLabelValues(method, metrics.OutcomeSuccess).Inc()
	return json.RawMessage(payload), nil
}

// waitForPacing blocks until this call owns the next dispatch slot: first
// any upstream-imposed delay, then the shared interval limiter.
func (d *Dispatcher) waitForPacing(ctx context.Context) error {
	start := time.Now()
	if err := d.waitForForcedDelay(ctx); err != nil {
		return err
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.PacingWait.Observe(time.Since(start).Seconds())
	return nil
}

func (d *Dispatcher) waitForForcedDelay(ctx context.Context) error {
	for {
		d.mu.Lock()
		waitUntil := d.forceWaitUntil
		d.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			d.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			d.clearForcedDelay(waitUntil)
		}
	}
}

func (d *Dispatcher) clearForcedDelay(previous time.Time) {
	d.mu.Lock()
	if previous.Equal(d.forceWaitUntil) {
		d.forceWaitUntil = time.Time{}
	}
	d.mu.Unlock()
}

// applyRateHeaders inspects upstream throttling headers and defers future
// dispatches when the quota is nearly spent.
func (d *Dispatcher) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, parseFloatBitSize); err == nil && seconds > 0 {
			d.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, parseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, parseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 1 {
		d.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (d *Dispatcher) deferRequests(delay time.Duration) {
	if delay <= 0 {
		return
	}

	until := time.Now().Add(delay)

	d.mu.Lock()
	if until.After(d.forceWaitUntil) {
		d.forceWaitUntil = until
	}
	d.mu.Unlock()
}

func retryAfterHint(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(retryAfter, parseFloatBitSize)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// retryable reports whether the error may succeed on a later attempt. Only
// upstream throttling and network failures qualify; every other status is
// returned to the caller as-is.
func retryable(err error) bool {
	var rateErr *pkgerrs.RateLimitError
	var transportErr *pkgerrs.TransportError
	return errors.As(err, &rateErr) || errors.As(err, &transportErr)
}

func retryReason(err error) string {
	var rateErr *pkgerrs.RateLimitError
	if errors.As(err, &rateErr) {
		return metrics.ReasonRateLimited
	}
	return metrics.ReasonNetwork
}

func setAttempts(err error, attempts int) {
	var rateErr *pkgerrs.RateLimitError
	if errors.As(err, &rateErr) {
		rateErr.Attempts = attempts
		return
	}
	var transportErr *pkgerrs.TransportError
	if errors.As(err, &transportErr) {
		transportErr.Attempts = attempts
	}
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
