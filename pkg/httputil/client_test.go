package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrelworks/oppintel/pkg/logger"
)

func TestBuildURL(t *testing.T) {
	params := url.Values{}
	params.Set("api_key", "k")
	params.Set("sort", "gravity")

	got := BuildURL("https://api.example.com", "/v2/products", params)
	want := "https://api.example.com/v2/products?api_key=k&sort=gravity"
	if got != want {
		t.Errorf("BuildURL() = %s, want %s", got, want)
	}

	if got := BuildURL("https://api.example.com", "/health", nil); got != "https://api.example.com/health" {
		t.Errorf("BuildURL() without params = %s", got)
	}
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := New(logger.NewNop()).WithRetry(3, 5*time.Millisecond)

	var dest map[string]bool
	if err := client.GetJSON(context.Background(), server.URL, &dest); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if !dest["ok"] {
		t.Errorf("GetJSON() decoded %v, want ok=true", dest)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("upstream hit %d times, want 3 (two retries)", got)
	}
}

func TestGetJSON_NoRetryWhenDisabled(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(logger.NewNop()).DisableRetry()

	var dest map[string]bool
	if err := client.GetJSON(context.Background(), server.URL, &dest); err == nil {
		t.Error("GetJSON() against a 500 expected error")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("upstream hit %d times, want 1", got)
	}
}

func TestRateLimiter_BlocksUntilBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	// One token, refilled every 50ms
	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)
	client := New(logger.NewNop()).DisableRetry().WithRateLimiter(limiter)

	var dest map[string]interface{}
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := client.GetJSON(context.Background(), server.URL, &dest); err != nil {
			t.Fatalf("GetJSON() call %d error = %v", i, err)
		}
	}

	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three calls completed in %v, want the limiter to pace them past 100ms", elapsed)
	}
}

func TestRateLimiter_RespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	client := New(logger.NewNop()).DisableRetry().WithRateLimiter(limiter)

	ctx := context.Background()
	var dest map[string]interface{}
	if err := client.GetJSON(ctx, server.URL, &dest); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	// Budget exhausted; a short deadline must abort the wait
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := client.GetJSON(shortCtx, server.URL, &dest); err == nil {
		t.Error("expected the rate-limit wait to fail on context deadline")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		if got := IsRetryableError(tt.status); got != tt.want {
			t.Errorf("IsRetryableError(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
