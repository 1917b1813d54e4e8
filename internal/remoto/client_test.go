package remoto

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type countingHandler struct {
	mu       sync.Mutex
	requests int
	statuses []int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.requests++
	status := http.StatusOK
	if len(h.statuses) > 0 {
		status = h.statuses[0]
		h.statuses = h.statuses[1:]
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests
}

func newTestClient(t *testing.T, retries int) (*Client, *[]time.Duration, *time.Time) {
	t.Helper()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var delays []time.Duration

	c := New(Config{
		Token:       "penguin-secret",
		Timeout:     time.Second,
		MaxRetries:  retries,
		MaxFailures: 3,
		OpenFor:     30 * time.Second,
		Logf:        func(string, ...any) {},
	})
	c.now = func() time.Time { return now }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return c, &delays, &now
}

func TestInvoke_DeliversBelow500WithoutRetry(t *testing.T) {
	handler := &countingHandler{statuses: []int{http.StatusConflict}}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, delays, _ := newTestClient(t, 2)

	resp, err := c.Post(context.Background(), "inventario", srv.URL+"/reservar", map[string]any{"cantidad": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if handler.count() != 1 {
		t.Fatalf("expected 1 request, got %d", handler.count())
	}
	if len(*delays) != 0 {
		t.Fatalf("expected no backoff, got %v", *delays)
	}
}

func TestInvoke_RetriesWithLinearBackoff(t *testing.T) {
	handler := &countingHandler{statuses: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusOK}}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, delays, _ := newTestClient(t, 2)

	resp, err := c.Get(context.Background(), "productos", srv.URL+"/productos/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if handler.count() != 3 {
		t.Fatalf("expected 3 attempts, got %d", handler.count())
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(*delays) != 2 || (*delays)[0] != want[0] || (*delays)[1] != want[1] {
		t.Fatalf("unexpected backoff: %v", *delays)
	}
}

func TestInvoke_ExhaustedAttemptsReturnCommError(t *testing.T) {
	handler := &countingHandler{statuses: []int{500, 500, 500}}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, _, _ := newTestClient(t, 2)

	_, err := c.Get(context.Background(), "productos", srv.URL+"/productos/1")
	var comm *CommError
	if !errors.As(err, &comm) {
		t.Fatalf("expected CommError, got %v", err)
	}
	if comm.Service != "productos" {
		t.Fatalf("unexpected service: %s", comm.Service)
	}
	if handler.count() != 3 {
		t.Fatalf("expected 3 attempts, got %d", handler.count())
	}
}

func TestInvoke_BreakerOpensAfterThreeFailedCalls(t *testing.T) {
	handler := &countingHandler{statuses: []int{500, 500, 500, 500}}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, _, _ := newTestClient(t, 0)

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "pagos", srv.URL+"/pagar"); err == nil {
			t.Fatalf("expected failure on call %d", i+1)
		}
	}
	before := handler.count()

	_, err := c.Get(context.Background(), "pagos", srv.URL+"/pagar")
	var open *CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("expected CircuitOpenError, got %v", err)
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen in chain")
	}
	if handler.count() != before {
		t.Fatalf("open breaker must not touch the network")
	}
}

func TestInvoke_BreakerAllowsCallsAfterWindow(t *testing.T) {
	handler := &countingHandler{statuses: []int{500, 500, 500, http.StatusOK}}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, _, now := newTestClient(t, 0)

	for i := 0; i < 3; i++ {
		_, _ = c.Get(context.Background(), "pagos", srv.URL+"/pagar")
	}
	if _, err := c.Get(context.Background(), "pagos", srv.URL+"/pagar"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open breaker")
	}

	*now = now.Add(31 * time.Second)

	resp, err := c.Get(context.Background(), "pagos", srv.URL+"/pagar")
	if err != nil {
		t.Fatalf("expected call after window, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if handler.count() != 4 {
		t.Fatalf("expected 4 network attempts, got %d", handler.count())
	}

	// Success closed the breaker again.
	if _, open := c.breakerOpen("pagos"); open {
		t.Fatalf("breaker should be closed after success")
	}
}

func TestInvoke_SuccessResetsFailureCount(t *testing.T) {
	handler := &countingHandler{statuses: []int{500, 500, http.StatusOK, 500, 500}}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, _, _ := newTestClient(t, 0)

	_, _ = c.Get(context.Background(), "inventario", srv.URL+"/reservar")
	_, _ = c.Get(context.Background(), "inventario", srv.URL+"/reservar")
	if _, err := c.Get(context.Background(), "inventario", srv.URL+"/reservar"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	_, _ = c.Get(context.Background(), "inventario", srv.URL+"/reservar")
	_, _ = c.Get(context.Background(), "inventario", srv.URL+"/reservar")

	if _, open := c.breakerOpen("inventario"); open {
		t.Fatalf("two consecutive failures must not open the breaker")
	}
}

func TestInvoke_TransportErrorCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c, _, _ := newTestClient(t, 0)

	_, err := c.Get(context.Background(), "productos", url+"/productos/1")
	var comm *CommError
	if !errors.As(err, &comm) {
		t.Fatalf("expected CommError, got %v", err)
	}
}

func TestInvoke_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c, _, _ := newTestClient(t, 0)

	if _, err := c.Get(context.Background(), "productos", srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer penguin-secret" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}
