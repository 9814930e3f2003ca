// Package errors defines common error types returned by the snooproxy client
// and surfaced by the HTTP service. Callers are expected to match them with
// errors.As rather than by message.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ConfigError indicates a problem with client configuration or with a value
// supplied by a caller before any network activity takes place.
type ConfigError struct {
	// Field contains the name of the configuration field or parameter that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError indicates the application token exchange failed. It is returned
// both from explicit connection checks and from requests that could not
// obtain a token.
type AuthError struct {
	// StatusCode is the HTTP status code of the token endpoint response (if one was received)
	StatusCode int
	// Body contains the raw token endpoint response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Body != "":
		return fmt.Sprintf("auth error: status code %d, body: %q", e.StatusCode, e.Body)
	case e.StatusCode > 0:
		return fmt.Sprintf("auth error: status code %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("auth error: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("auth error: body: %q", e.Body)
	}
	return "auth error"
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RateLimitError indicates the upstream kept answering 429 until the retry
// budget was exhausted.
type RateLimitError struct {
	// Attempts is the total number of requests made, including the first one
	Attempts int
	// RetryAfter is the delay advertised by the upstream, if it sent one
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by upstream after %d attempts (retry after %s)", e.Attempts, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by upstream after %d attempts", e.Attempts)
}

// TransportError indicates the upstream could not be reached at the network
// level, even after retrying.
type TransportError struct {
	// Attempts is the total number of requests made, including the first one
	Attempts int
	// Err contains the last underlying network error
	Err error
}

func (e *TransportError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("upstream unreachable after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError represents a non-success status from the upstream API that is not
// subject to retries, such as a missing subreddit or a server-side failure.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body contains a truncated copy of the response body (if available)
	Body string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream API error: status code %d, body: %q", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream API error: status code %d", e.StatusCode)
}

// IsNotFound reports whether the upstream answered 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsClientError reports whether the status is in the 4xx range.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError reports whether the status is in the 5xx range.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// ParseError indicates an upstream payload did not match the shape the
// normalizer expects.
type ParseError struct {
	// Operation is the name of the operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
