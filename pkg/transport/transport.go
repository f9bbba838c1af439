// Package transport abstracts the remote Data Bridges API behind named
// operations. Implementations issue one operation call per request and return
// either a typed page result or an APIError carrying the HTTP status code.
package transport

import (
	"context"
	"fmt"
)

// PageResult is the raw result of one remote operation call: one page of
// record items plus, when the operation is paginated, the total item count
// across all pages.
type PageResult struct {
	// TotalItems is the total number of items across all pages, or nil when
	// the operation does not report a count.
	TotalItems *int64 `json:"total_items"`

	// Items is the ordered sequence of record items on this page.
	Items []any `json:"items"`
}

// APIError represents a failed remote call with its HTTP status code.
type APIError struct {
	StatusCode int
	Operation  string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data bridges %s failed (status %d): %s: %v",
			e.Operation, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("data bridges %s failed (status %d): %s",
		e.Operation, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// RetryableStatus reports whether a status code indicates a transient
// condition worth retrying (rate limiting or server-side failure).
func RetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// AuthExpiredStatus reports whether a status code indicates an expired or
// invalid bearer token.
func AuthExpiredStatus(code int) bool {
	return code == 401
}

// Transport issues named Data Bridges operations.
type Transport interface {
	// Invoke calls the named remote operation with the given query parameters
	// and bearer token. A non-2xx response is returned as an *APIError.
	Invoke(ctx context.Context, operation string, params map[string]string, bearer string) (*PageResult, error)
}
