// Package repository provides the top-level Data Bridges data-access
// surface: construct a Repository with API credentials, then fetch single
// pages or complete paginated results as row sets.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/WFP-VAM/google-data-bridges/pkg/endpoint"
	"github.com/WFP-VAM/google-data-bridges/pkg/fetcher"
	"github.com/WFP-VAM/google-data-bridges/pkg/paginate"
	"github.com/WFP-VAM/google-data-bridges/pkg/retry"
	"github.com/WFP-VAM/google-data-bridges/pkg/rowset"
	"github.com/WFP-VAM/google-data-bridges/pkg/token"
	"github.com/WFP-VAM/google-data-bridges/pkg/transport"
)

// Production endpoints of the WFP Data Bridges API.
const (
	DefaultHost     = "https://api.wfp.org/vam-data-bridges/4.1.0"
	DefaultTokenURL = "https://api.wfp.org/token"
)

// Config holds the repository configuration.
type Config struct {
	// Key and Secret are the long-lived API credentials.
	Key    string
	Secret string

	// Scopes is the list of scope tokens requested on token refresh,
	// typically the remote operation names of the endpoints in use.
	Scopes []string

	// Host is the Data Bridges API base URL.
	Host string

	// TokenURL is the token endpoint exchanging credentials for bearer
	// tokens.
	TokenURL string

	// PageSize is the page size used in page-count math (default 1000).
	PageSize int

	// Workers is the concurrent page-fetch pool size (default 5).
	Workers int

	// TokenRetry is the token-refresh retry schedule (default 5 attempts,
	// factor 2, 1s unit).
	TokenRetry retry.Config

	// PageRetry is the page-fetch retry schedule (default 10 attempts,
	// factor 2, 1s unit).
	PageRetry retry.Config

	// Logger is the injected logger; zerolog.Nop() silences the repository.
	Logger zerolog.Logger

	// Transport overrides the HTTP transport (for testing).
	Transport transport.Transport

	// TokenProvider overrides the HTTP token provider (for testing).
	TokenProvider token.Provider
}

// DefaultConfig returns a production configuration for the given
// credentials.
func DefaultConfig(key, secret string, scopes []string) Config {
	return Config{
		Key:        key,
		Secret:     secret,
		Scopes:     scopes,
		Host:       DefaultHost,
		TokenURL:   DefaultTokenURL,
		PageSize:   paginate.DefaultPageSize,
		Workers:    paginate.DefaultWorkers,
		TokenRetry: retry.TokenConfig(),
		PageRetry:  retry.DefaultConfig(),
	}
}

// Repository is the resilient data-access layer over the Data Bridges API.
type Repository struct {
	tokens       *token.Manager
	fetcher      *fetcher.Fetcher
	orchestrator *paginate.Orchestrator
	logger       zerolog.Logger
}

// New creates a Repository and performs the initial token refresh. The
// context bounds the initial refresh, including its backoff waits.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.Key == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("api key and secret are required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.TokenRetry.MaxAttempts == 0 {
		cfg.TokenRetry = retry.TokenConfig()
	}
	if cfg.PageRetry.MaxAttempts == 0 {
		cfg.PageRetry = retry.DefaultConfig()
	}

	logger := cfg.Logger.With().Str("component", "databridges").Logger()

	provider := cfg.TokenProvider
	if provider == nil {
		provider = token.NewHTTPProvider(cfg.TokenURL, logger)
	}
	tr := cfg.Transport
	if tr == nil {
		tr = transport.NewHTTP(cfg.Host, logger)
	}

	creds := token.Credentials{Key: cfg.Key, Secret: cfg.Secret, Scopes: cfg.Scopes}
	tokens := token.NewManager(provider, creds, cfg.Host, cfg.TokenRetry, logger)

	start := time.Now()
	if _, err := tokens.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial token refresh: %w", err)
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("Repository ready")

	f := fetcher.New(tr, tokens, cfg.PageRetry, logger)
	o := paginate.New(f, paginate.Config{PageSize: cfg.PageSize, Workers: cfg.Workers}, logger)

	return &Repository{
		tokens:       tokens,
		fetcher:      f,
		orchestrator: o,
		logger:       logger,
	}, nil
}

// FetchAll retrieves every page of the endpoint and returns the rows
// concatenated in ascending page order.
func (r *Repository) FetchAll(ctx context.Context, e endpoint.Endpoint, params map[string]string) (*rowset.RowSet, error) {
	return r.orchestrator.FetchAll(ctx, e, params)
}

// FetchPage retrieves a single page of the endpoint.
func (r *Repository) FetchPage(ctx context.Context, e endpoint.Endpoint, params map[string]string) (*fetcher.Page, error) {
	return r.fetcher.FetchPage(ctx, e, params)
}

// Session returns the current authorization session snapshot.
func (r *Repository) Session() *token.Session {
	return r.tokens.Current()
}
