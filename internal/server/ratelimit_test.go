package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestRateLimiter(t *testing.T, rps float64, burst int) *rateLimiter {
	t.Helper()
	rl, stop := newRateLimiter(rps, burst, slog.Default())
	t.Cleanup(stop)
	return rl
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":54321"
	return req
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 10, 5)
	h := rl.middleware(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("192.0.2.1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimiter_BlocksOverBurst(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 1, 2)
	h := rl.middleware(okHandler())

	// Exhaust the burst, then the next request must be rejected.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("192.0.2.2"))
		if w.Code != http.StatusOK {
			t.Fatalf("burst request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("192.0.2.2"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want %q", got, "1")
	}
}

func TestRateLimiter_IsolatesClients(t *testing.T) {
	t.Parallel()

	rl := newTestRateLimiter(t, 1, 1)
	h := rl.middleware(okHandler())

	// First client burns its single token.
	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("192.0.2.3"))
	if w.Code != http.StatusOK {
		t.Fatalf("client A first request: expected 200, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("192.0.2.3"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("client A second request: expected 429, got %d", w.Code)
	}

	// A different client still has its full bucket.
	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("192.0.2.4"))
	if w.Code != http.StatusOK {
		t.Errorf("client B: expected 200, got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remoteAddr string
		want       string
	}{
		{remoteAddr: "192.0.2.1:8080", want: "192.0.2.1"},
		{remoteAddr: "[::1]:8080", want: "[::1]"},
		{remoteAddr: "no-port", want: "no-port"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
