// Package auth owns the application-only OAuth token used for upstream
// requests: it exchanges client credentials for a token, caches it, and
// refreshes it before expiry.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/snooproxy/internal/metrics"
	pkgerrs "github.com/snooproxy/pkg/errors"
)

const tokenEndpointPath = "api/v1/access_token"

// expiryMargin is subtracted from the provider-reported lifetime when
// deciding whether the cached token is still usable, so a token is never
// handed out moments before the upstream would reject it.
const expiryMargin = 60 * time.Second

// Manager exchanges client credentials for an application token and hands
// out the cached one while it remains valid. Concurrent callers that find
// the token missing or expiring share a single in-flight exchange instead of
// issuing duplicate requests.
type Manager struct {
	client       *http.Client
	clientID     string
	clientSecret string
	userAgent    string
	tokenURL     *url.URL
	formData     url.Values
	logger       zerolog.Logger

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewManager creates a token manager for the given credentials. The authURL
// is the host the token endpoint lives on; httpClient may be nil to use
// http.DefaultClient.
func NewManager(httpClient *http.Client, clientID, clientSecret, userAgent, authURL string, logger zerolog.Logger) (*Manager, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(authURL)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to parse auth URL: %w", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	tokenURL, err := parsedURL.Parse(tokenEndpointPath)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to resolve token endpoint: %w", err)}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	return &Manager{
		client:       httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		tokenURL:     tokenURL,
		formData:     form,
		logger:       logger,
		now:          time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Token returns a currently valid bearer token, exchanging credentials first
// if the cached one is missing or inside the expiry margin. It never blocks
// behind a refresh it does not need: callers holding a valid token return
// immediately.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	v, err, _ := m.group.Do("token", func() (interface{}, error) {
		// A refresh that completed while this caller queued may already
		// have stored a usable token.
		if token, ok := m.cached(); ok {
			return token, nil
		}
		return m.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next Token call performs a fresh
// exchange.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

func (m *Manager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", false
	}
	if !m.now().Before(m.expiresAt.Add(-expiryMargin)) {
		return "", false
	}
	return m.token, true
}

func (m *Manager) store(token string, lifetime time.Duration) {
	m.mu.Lock()
	m.token = token
	m.expiresAt = m.now().Add(lifetime)
	m.mu.Unlock()
}

// exchange performs the client_credentials grant. Any failure clears the
// cached token so a later call starts from a clean slate.
func (m *Manager) exchange(ctx context.Context) (string, error) {
	m.Invalidate()
	m.logger.Debug().Str("url", m.tokenURL.String()).Msg("exchanging credentials for application token")

	token, lifetime, err := m.requestToken(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		m.logger.Error().Err(err).Msg("token exchange failed")
		return "", err
	}

	m.store(token, lifetime)
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	m.logger.Debug().Dur("lifetime", lifetime).Msg("application token refreshed")
	return token, nil
}

func (m *Manager) requestToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL.String(), strings.NewReader(m.formData.Encode()))
	if err != nil {
		return "", 0, &pkgerrs.AuthError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}

	req.SetBasicAuth(m.clientID, m.clientSecret)
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", 0, &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute token request: %w", err)}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read token response body: %w", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return "", 0, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
			Err:        fmt.Errorf("failed to unmarshal token response: %w", err),
		}
	}

	if tokenResp.AccessToken == "" {
		return "", 0, &pkgerrs.AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
			Err:        fmt.Errorf("access token was empty in response"),
		}
	}

	lifetime := time.Duration(tokenResp.ExpiresIn) * time.Second
	if lifetime <= 0 {
		// Some deployments omit expires_in; treat the token as
		// short-lived rather than permanent.
		lifetime = expiryMargin * 2
	}

	return tokenResp.AccessToken, lifetime, nil
}
