// Package fetcher retrieves single pages from the Data Bridges API with
// transparent re-authentication and bounded retry.
//
// Error handling mirrors the API's failure modes: a 401 triggers one token
// refresh followed by exactly one retry of the call; 429 and 5xx responses
// are retried on an exponential backoff schedule; anything else fails
// immediately.
package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/WFP-VAM/google-data-bridges/pkg/endpoint"
	"github.com/WFP-VAM/google-data-bridges/pkg/retry"
	"github.com/WFP-VAM/google-data-bridges/pkg/rowset"
	"github.com/WFP-VAM/google-data-bridges/pkg/token"
	"github.com/WFP-VAM/google-data-bridges/pkg/transport"
)

// Prometheus metrics for page fetches.
var (
	pageFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridges_page_fetches_total",
		Help: "Total page fetches by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
)

// ErrUnsupportedParam is returned when a request carries a parameter the
// endpoint's descriptor does not accept.
var ErrUnsupportedParam = errors.New("unsupported parameter")

// Page is the result of fetching one page: the normalized rows plus the
// total item count when the remote operation reports one.
type Page struct {
	// TotalItems is the item count across all pages, or nil when the
	// operation does not report one.
	TotalItems *int64

	// Rows holds the normalized records of this page.
	Rows *rowset.RowSet
}

// Fetcher retrieves single pages through the transport, authorizing each
// call with the token manager's current session.
type Fetcher struct {
	transport transport.Transport
	tokens    *token.Manager
	cfg       retry.Config
	logger    zerolog.Logger
}

// New creates a single-page fetcher.
func New(tr transport.Transport, tokens *token.Manager, cfg retry.Config, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		transport: tr,
		tokens:    tokens,
		cfg:       cfg,
		logger:    logger.With().Str("component", "fetcher").Logger(),
	}
}

// FetchPage fetches one page of the given endpoint. Parameters are validated
// against the endpoint's descriptor before any network call.
func (f *Fetcher) FetchPage(ctx context.Context, e endpoint.Endpoint, params map[string]string) (*Page, error) {
	desc, err := endpoint.Resolve(e)
	if err != nil {
		pageFetchesTotal.WithLabelValues(string(e), "invalid_endpoint").Inc()
		return nil, err
	}

	for name := range params {
		if !desc.AcceptsParam(name) {
			return nil, fmt.Errorf("%w: %q not accepted by endpoint %q", ErrUnsupportedParam, name, e)
		}
	}

	f.logger.Debug().
		Str("endpoint", string(e)).
		Str("operation", desc.Operation).
		Interface("params", params).
		Msg("Fetching page")

	result, err := f.invokeResilient(ctx, e, desc.Operation, params)
	if err != nil {
		pageFetchesTotal.WithLabelValues(string(e), "error").Inc()
		return nil, err
	}

	pageFetchesTotal.WithLabelValues(string(e), "success").Inc()
	return &Page{
		TotalItems: result.TotalItems,
		Rows:       rowset.FromItems(result.Items),
	}, nil
}

// invokeResilient executes the remote operation with the retry and
// re-authentication policy: 429/5xx enter the exponential backoff loop, a
// 401 triggers a single-flight token refresh followed by exactly one retry.
func (f *Fetcher) invokeResilient(ctx context.Context, e endpoint.Endpoint, operation string, params map[string]string) (*transport.PageResult, error) {
	var result *transport.PageResult
	err := retry.Do(ctx, f.logger, "page_fetch", f.cfg, retryableAPIError, func() error {
		var callErr error
		result, callErr = f.invoke(ctx, operation, params)
		return callErr
	})
	if err == nil {
		return result, nil
	}

	var apiErr *transport.APIError
	if !errors.As(err, &apiErr) || !transport.AuthExpiredStatus(apiErr.StatusCode) {
		return nil, err
	}

	// Token expired: refresh once and retry the call exactly once. A second
	// 401 propagates without a further refresh.
	f.logger.Info().
		Str("endpoint", string(e)).
		Msg("Token expired, refreshing")
	if _, refreshErr := f.tokens.Refresh(ctx); refreshErr != nil {
		return nil, refreshErr
	}
	return f.invoke(ctx, operation, params)
}

// invoke issues one transport call authorized with the current session.
func (f *Fetcher) invoke(ctx context.Context, operation string, params map[string]string) (*transport.PageResult, error) {
	bearer := ""
	if session := f.tokens.Current(); session != nil {
		bearer = session.Token
	}
	return f.transport.Invoke(ctx, operation, params, bearer)
}

// retryableAPIError classifies transport failures for the backoff loop.
// Auth expiry is handled separately and is not retried here.
func retryableAPIError(err error) bool {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return transport.RetryableStatus(apiErr.StatusCode)
	}
	return false
}
