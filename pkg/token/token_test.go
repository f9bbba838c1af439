package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/WFP-VAM/google-data-bridges/pkg/retry"
	"github.com/WFP-VAM/google-data-bridges/pkg/transport"
)

// fakeProvider scripts a sequence of refresh outcomes.
type fakeProvider struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int32
	delay     time.Duration
}

type fakeResponse struct {
	token string
	err   error
}

func (p *fakeProvider) Refresh(ctx context.Context, key, secret string, scopes []string) (string, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return resp.token, resp.err
}

func (p *fakeProvider) callCount() int {
	return int(atomic.LoadInt32(&p.calls))
}

func statusErr(code int) error {
	return &transport.APIError{StatusCode: code, Operation: "token_refresh", Message: "scripted"}
}

func testRetryConfig() retry.Config {
	return retry.Config{MaxAttempts: 5, Factor: 2.0, Unit: time.Millisecond}
}

func newTestManager(p Provider) *Manager {
	creds := Credentials{Key: "key", Secret: "secret", Scopes: []string{"vamdatabridges_economicdata_get"}}
	return NewManager(p, creds, "https://api.example.org/vam-data-bridges/4.1.0", testRetryConfig(), zerolog.Nop())
}

func TestRefresh_Success(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{token: "tok-1"}}}
	m := newTestManager(provider)

	session, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	if session.Token != "tok-1" {
		t.Errorf("Token = %q, want tok-1", session.Token)
	}
	if session.Host != "https://api.example.org/vam-data-bridges/4.1.0" {
		t.Errorf("Host = %q", session.Host)
	}
	if got := m.Current(); got != session {
		t.Error("Current() should return the refreshed session snapshot")
	}
}

func TestRefresh_ReplacesSessionWholesale(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{token: "tok-1"}, {token: "tok-2"}}}
	m := newTestManager(provider)

	first, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Error("refresh should produce a new session snapshot, not mutate the old one")
	}
	if first.Token != "tok-1" {
		t.Errorf("old snapshot mutated: Token = %q", first.Token)
	}
	if second.Token != "tok-2" {
		t.Errorf("Token = %q, want tok-2", second.Token)
	}
}

func TestRefresh_RetriesThenSucceeds(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{err: statusErr(503)},
		{err: statusErr(429)},
		{token: "tok-1"},
	}}
	m := newTestManager(provider)

	session, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh error = %v", err)
	}
	if session.Token != "tok-1" {
		t.Errorf("Token = %q, want tok-1", session.Token)
	}
	if provider.callCount() != 3 {
		t.Errorf("provider calls = %d, want 3", provider.callCount())
	}
}

func TestRefresh_ExhaustedAfterFiveAttempts(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{err: statusErr(503)}}}
	m := newTestManager(provider)

	_, err := m.Refresh(context.Background())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, retry.ErrExhausted) {
		t.Errorf("Expected ErrExhausted, got %v", err)
	}
	if provider.callCount() != 5 {
		t.Errorf("provider calls = %d, want 5", provider.callCount())
	}
	if m.Current() != nil {
		t.Error("failed refresh should not install a session")
	}
}

func TestRefresh_NonRetryableRejection(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{err: statusErr(403)}}}
	m := newTestManager(provider)

	_, err := m.Refresh(context.Background())
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrAuthRejected) {
		t.Errorf("Expected ErrAuthRejected, got %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (no retry on rejection)", provider.callCount())
	}
}

func TestRefresh_ConcurrentCallersShareOneRefresh(t *testing.T) {
	provider := &fakeProvider{
		responses: []fakeResponse{{token: "tok-1"}},
		delay:     100 * time.Millisecond,
	}
	m := newTestManager(provider)

	const callers = 8
	var wg sync.WaitGroup
	sessions := make([]*Session, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = m.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	if provider.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (single-flight)", provider.callCount())
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if sessions[i].Token != "tok-1" {
			t.Errorf("caller %d Token = %q, want tok-1", i, sessions[i].Token)
		}
	}
}

func TestCurrent_NilBeforeFirstRefresh(t *testing.T) {
	m := newTestManager(&fakeProvider{})
	if m.Current() != nil {
		t.Error("Current() should be nil before the first refresh")
	}
}
