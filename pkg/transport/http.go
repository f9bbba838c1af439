package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for remote operation calls.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "databridges_requests_total",
		Help: "Total Data Bridges requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "databridges_request_duration_seconds",
		Help:    "Data Bridges request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})
)

// operationPaths maps remote operation names to their REST paths on the Data
// Bridges host. Path segments in braces are substituted from the request
// parameters.
var operationPaths = map[string]string{
	"vamdatabridges_currency-usdindirectquotation_get": "/Currency/UsdIndirectQuotation",
	"vamdatabridges_economicdata-indicatorlist_get":    "/EconomicData/IndicatorList",
	"vamdatabridges_economicdata_get":                  "/EconomicData/{indicator_name}",
}

// HTTPTransport invokes Data Bridges operations over HTTP with bearer
// authorization.
type HTTPTransport struct {
	host       string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTP creates an HTTP transport against the given Data Bridges host.
func NewHTTP(host string, logger zerolog.Logger) *HTTPTransport {
	return &HTTPTransport{
		host: strings.TrimRight(host, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().Str("component", "transport").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// Invoke implements Transport.
func (t *HTTPTransport) Invoke(ctx context.Context, operation string, params map[string]string, bearer string) (*PageResult, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	reqURL, err := t.buildURL(operation, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	t.logger.Debug().
		Str("operation", operation).
		Str("url", reqURL).
		Msg("Invoking remote operation")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(operation, "network_error").Inc()
		return nil, &APIError{
			Operation: operation,
			Message:   "request failed",
			Err:       err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(operation, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		t.logger.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Msg("Remote operation error")
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Operation:  operation,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var result PageResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Operation:  operation,
			Message:    "decode response",
			Err:        err,
		}
	}

	return &result, nil
}

// buildURL resolves the operation path, substitutes path parameters, and
// encodes the remaining parameters as the query string.
func (t *HTTPTransport) buildURL(operation string, params map[string]string) (string, error) {
	path, ok := operationPaths[operation]
	if !ok {
		return "", &APIError{
			Operation: operation,
			Message:   "no path mapping for operation",
		}
	}

	query := url.Values{}
	for name, value := range params {
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.Replace(path, placeholder, url.PathEscape(value), 1)
			continue
		}
		query.Set(name, value)
	}

	if strings.Contains(path, "{") {
		return "", &APIError{
			Operation: operation,
			Message:   fmt.Sprintf("missing path parameter for %s", path),
		}
	}

	reqURL := t.host + path
	if encoded := query.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}
	return reqURL, nil
}
