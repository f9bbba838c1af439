package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/WFP-VAM/google-data-bridges/pkg/transport"
)

// HTTPProvider exchanges credentials for a bearer token against the Data
// Bridges token endpoint using the client-credentials grant.
type HTTPProvider struct {
	tokenURL   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPProvider creates a provider against the given token URL.
func NewHTTPProvider(tokenURL string, logger zerolog.Logger) *HTTPProvider {
	return &HTTPProvider{
		tokenURL: tokenURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().Str("component", "token-provider").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (p *HTTPProvider) SetHTTPClient(client *http.Client) {
	p.httpClient = client
}

// Refresh implements Provider.
func (p *HTTPProvider) Refresh(ctx context.Context, key, secret string, scopes []string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(key, secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &transport.APIError{
			Operation: "token_refresh",
			Message:   "token request failed",
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &transport.APIError{
			StatusCode: resp.StatusCode,
			Operation:  "token_refresh",
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &transport.APIError{
			StatusCode: resp.StatusCode,
			Operation:  "token_refresh",
			Message:    "decode token response",
			Err:        err,
		}
	}
	if payload.AccessToken == "" {
		return "", &transport.APIError{
			StatusCode: resp.StatusCode,
			Operation:  "token_refresh",
			Message:    "empty access token in response",
		}
	}

	return payload.AccessToken, nil
}
