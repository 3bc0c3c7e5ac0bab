package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/santinopnp/PNPtvLive-bot/internal/alerting"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
)

func admissionConfig() config.AdmissionConfig {
	return config.AdmissionConfig{
		Window:          time.Minute,
		Limit:           2,
		TrustedLimit:    4,
		TrustedPrefixes: "181.78.23.,190.90.8.",
	}
}

type countingSink struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (s *countingSink) Emit(_ context.Context, event alerting.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *countingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newAdmissionHandler(sink alerting.Sink) http.Handler {
	policy := NewAdmissionPolicy(admissionConfig(), "/health")
	mw := Admission(policy, NewMemoryCounter(), sink, nil)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(handler http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestAdmissionEnforcesDefaultLimit(t *testing.T) {
	sink := &countingSink{}
	handler := newAdmissionHandler(sink)

	for i := 0; i < 2; i++ {
		if w := doRequest(handler, "/webhooks/bold", "203.0.113.9"); w.Code != http.StatusOK {
			t.Fatalf("request %d should be admitted, got %d", i+1, w.Code)
		}
	}
	if w := doRequest(handler, "/webhooks/bold", "203.0.113.9"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if sink.total() != 1 {
		t.Fatalf("expected one alert on first trip, got %d", sink.total())
	}

	// A second blocked request in the same window must not re-alert.
	if w := doRequest(handler, "/webhooks/bold", "203.0.113.9"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if sink.total() != 1 {
		t.Fatalf("alerts should fire once per window, got %d", sink.total())
	}
}

func TestAdmissionSeparatesClients(t *testing.T) {
	handler := newAdmissionHandler(&countingSink{})

	for i := 0; i < 2; i++ {
		doRequest(handler, "/webhooks/bold", "203.0.113.9")
	}
	if w := doRequest(handler, "/webhooks/bold", "198.51.100.7"); w.Code != http.StatusOK {
		t.Fatalf("other clients must not share a bucket, got %d", w.Code)
	}
}

func TestAdmissionTrustedPrefixGetsLargerBucket(t *testing.T) {
	handler := newAdmissionHandler(&countingSink{})

	for i := 0; i < 4; i++ {
		if w := doRequest(handler, "/webhooks/bold", "181.78.23.42"); w.Code != http.StatusOK {
			t.Fatalf("trusted request %d should be admitted, got %d", i+1, w.Code)
		}
	}
	if w := doRequest(handler, "/webhooks/bold", "181.78.23.42"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("trusted bucket still has a ceiling, got %d", w.Code)
	}
}

func TestAdmissionBypassesHealthPath(t *testing.T) {
	handler := newAdmissionHandler(&countingSink{})

	for i := 0; i < 10; i++ {
		if w := doRequest(handler, "/health", "203.0.113.9"); w.Code != http.StatusOK {
			t.Fatalf("health must bypass admission, got %d", w.Code)
		}
	}
}

func TestMemoryCounterResetsAfterWindow(t *testing.T) {
	counter := NewMemoryCounter()
	current := time.Now()
	counter.now = func() time.Time { return current }

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		count, err := counter.IncrWithTTL(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("incr failed: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	current = current.Add(2 * time.Minute)
	count, err := counter.IncrWithTTL(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("incr failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired window must reset, got %d", count)
	}
}
