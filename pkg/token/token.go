// Package token manages the bearer token used to authorize Data Bridges
// calls. The Manager owns the current session, refreshes it with bounded
// exponential backoff, and deduplicates concurrent refreshes so that several
// callers racing into a 401 trigger at most one provider round trip.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/WFP-VAM/google-data-bridges/pkg/retry"
	"github.com/WFP-VAM/google-data-bridges/pkg/transport"
)

// Prometheus metrics for token refresh operations.
var (
	tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridges_token_refreshes_total",
		Help: "Total token refresh attempts by outcome",
	}, []string{"outcome"})
)

// ErrAuthRejected is returned when the token provider rejects the credentials
// for a non-retryable reason.
var ErrAuthRejected = errors.New("token refresh rejected")

// Credentials holds the long-lived API credentials and the scopes to request.
// Supplied once at construction and never mutated.
type Credentials struct {
	Key    string
	Secret string
	Scopes []string
}

// Session is an immutable snapshot of the current authorization state. It is
// replaced wholesale on every refresh; callers keep the snapshot they read
// for the duration of one request.
type Session struct {
	// Token is the bearer token authorizing remote calls.
	Token string

	// Host is the Data Bridges host the token was issued against.
	Host string
}

// Provider exchanges credentials for a bearer token. Failures carry an HTTP
// status code via *transport.APIError so the Manager can distinguish
// retryable provider errors from outright rejections.
type Provider interface {
	Refresh(ctx context.Context, key, secret string, scopes []string) (string, error)
}

// Manager owns the current Session and its refresh lifecycle.
type Manager struct {
	provider Provider
	creds    Credentials
	host     string
	cfg      retry.Config
	logger   zerolog.Logger

	mu      sync.RWMutex
	session *Session

	refreshGroup singleflight.Group
}

// NewManager creates a token manager. No token is fetched until the first
// Refresh call.
func NewManager(provider Provider, creds Credentials, host string, cfg retry.Config, logger zerolog.Logger) *Manager {
	return &Manager{
		provider: provider,
		creds:    creds,
		host:     host,
		cfg:      cfg,
		logger:   logger.With().Str("component", "token-manager").Logger(),
	}
}

// Current returns the current session snapshot, or nil if no refresh has
// succeeded yet.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Refresh obtains a new bearer token and replaces the stored session.
// Concurrent callers share a single in-flight refresh and all receive its
// result. Retryable provider errors (429 and 5xx) are retried on the
// configured exponential schedule; any other provider error fails immediately
// with ErrAuthRejected.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	result, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Session), nil
}

func (m *Manager) refresh(ctx context.Context) (*Session, error) {
	m.logger.Info().Msg("Refreshing access token")

	var tok string
	err := retry.Do(ctx, m.logger, "token_refresh", m.cfg, retryableProviderError, func() error {
		var refreshErr error
		tok, refreshErr = m.provider.Refresh(ctx, m.creds.Key, m.creds.Secret, m.creds.Scopes)
		return refreshErr
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			tokenRefreshesTotal.WithLabelValues("exhausted").Inc()
			return nil, err
		}
		if errors.Is(err, retry.ErrContextCancelled) {
			return nil, err
		}
		tokenRefreshesTotal.WithLabelValues("rejected").Inc()
		m.logger.Error().Err(err).Msg("Token refresh rejected by provider")
		return nil, fmt.Errorf("%w: %w", ErrAuthRejected, err)
	}

	session := &Session{Token: tok, Host: m.host}
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	tokenRefreshesTotal.WithLabelValues("success").Inc()
	m.logger.Info().Msg("Access token refreshed")
	return session, nil
}

// retryableProviderError classifies provider failures by status code.
func retryableProviderError(err error) bool {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return transport.RetryableStatus(apiErr.StatusCode)
	}
	return false
}
