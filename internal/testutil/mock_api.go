// Package testutil provides a mock Data Bridges API for tests: a token
// endpoint issuing sequential bearer tokens and paginated data endpoints
// with scriptable failure sequences.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockAPI is a configurable mock Data Bridges server.
type MockAPI struct {
	server *httptest.Server

	mu         sync.Mutex
	items      map[string][]any
	failures   map[string][]int
	validToken string
	issued     int

	// Tracking
	RequestCount  int
	TokenRequests int
}

// NewMockAPI creates a mock server with no data loaded.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		items:    make(map[string][]any),
		failures: make(map[string][]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL. It serves both the data endpoints and the
// token endpoint (at /token).
func (m *MockAPI) URL() string {
	return m.server.URL
}

// TokenURL returns the token endpoint URL.
func (m *MockAPI) TokenURL() string {
	return m.server.URL + "/token"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetItems loads the full dataset served for a path; pages are sliced from
// it per the page and page_size query parameters.
func (m *MockAPI) SetItems(path string, items []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[path] = items
}

// ScriptFailures queues status codes returned (in order) for a path before
// normal serving resumes.
func (m *MockAPI) ScriptFailures(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], statuses...)
}

// InvalidateToken makes the current token stale, so the next data request
// gets a 401 until a refresh issues a new one.
func (m *MockAPI) InvalidateToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validToken = ""
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		m.handleToken(w, r)
		return
	}
	m.handleData(w, r)
}

func (m *MockAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.TokenRequests++
	if queue := m.failures["/token"]; len(queue) > 0 {
		status := queue[0]
		m.failures["/token"] = queue[1:]
		m.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}
	m.issued++
	m.validToken = fmt.Sprintf("tok-%d", m.issued)
	token := m.validToken
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token": %q, "token_type": "Bearer", "expires_in": 3600}`, token)
}

func (m *MockAPI) handleData(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++

	if queue := m.failures[r.URL.Path]; len(queue) > 0 {
		status := queue[0]
		m.failures[r.URL.Path] = queue[1:]
		m.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}

	valid := m.validToken
	items, known := m.items[r.URL.Path]
	m.mu.Unlock()

	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if valid == "" || bearer != valid {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !known {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 1000)

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_items": len(items),
		"items":       items[start:end],
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
