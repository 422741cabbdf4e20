package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr, principal string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if principal != "" {
		req = req.WithContext(domain.WithPrincipal(req.Context(), domain.ContextPrincipal{Name: principal}))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	handler := RateLimiter(ctx, RateLimitConfig{RequestsPerSecond: 1, Burst: 2})(okHandler())

	for range 2 {
		rec := serve(handler, "10.0.0.1:1234", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := serve(handler, "10.0.0.1:5678", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.InDelta(t, float64(429), body["code"], 0.001)
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	handler := RateLimiter(ctx, RateLimitConfig{RequestsPerSecond: 1, Burst: 1})(okHandler())

	require.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:2", "").Code)

	// Another IP, and principals behind the exhausted IP, have their own buckets.
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1", "").Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:3", "alice").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.9:3", "alice").Code)
}

func TestLimiterSet_EvictsIdleClients(t *testing.T) {
	set := &limiterSet{cfg: RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}, clients: map[string]*clientLimiter{}}
	now := time.Now()
	set.get("old", now.Add(-2*time.Minute))
	set.get("fresh", now)

	set.evict(now)
	assert.NotContains(t, set.clients, "old")
	assert.Contains(t, set.clients, "fresh")
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		principal  string
		want       string
	}{
		{name: "IPv4 with port", remoteAddr: "192.168.1.1:12345", want: "ip:192.168.1.1"},
		{name: "IPv6 with port", remoteAddr: "[::1]:12345", want: "ip:::1"},
		{name: "no port", remoteAddr: "192.168.1.1", want: "ip:192.168.1.1"},
		{name: "forwarded header ignored", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.50", want: "ip:10.0.0.1"},
		{name: "principal wins", remoteAddr: "10.0.0.1:1234", principal: "bob", want: "principal:bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.principal != "" {
				req = req.WithContext(domain.WithPrincipal(req.Context(), domain.ContextPrincipal{Name: tt.principal}))
			}
			assert.Equal(t, tt.want, clientKey(req))
		})
	}
}
