package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprint(w, "1. Term\nThis agreement lasts one year.")
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Body != "1. Term\nThis agreement lasts one year." {
		t.Errorf("Unexpected body: %s", result.Body)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", result.StatusCode)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if result.Body != "OK" {
		t.Errorf("Unexpected body: %s", result.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	if got := err.Error(); got != "unexpected status: 404 404 Not Found" {
		t.Errorf("Unexpected error: %s", got)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if attempts.Load() != maxFetchAttempts {
		t.Errorf("Expected %d attempts, got %d", maxFetchAttempts, attempts.Load())
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()
	noSleep(t)

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	if _, err := fetcher.FetchWithRetry(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected success after 429, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{fmt.Errorf("unexpected status: 503 503 Service Unavailable"), true},
		{fmt.Errorf("unexpected status: 500 500 Internal Server Error"), true},
		{fmt.Errorf("unexpected status: 502 502 Bad Gateway"), true},
		{fmt.Errorf("unexpected status: 429 429 Too Many Requests"), true},
		{fmt.Errorf("unexpected status: 404 404 Not Found"), false},
		{fmt.Errorf("unexpected status: 403 403 Forbidden"), false},
		{fmt.Errorf("unexpected status: 401 401 Unauthorized"), false},
		{fmt.Errorf("fetch: connection refused"), true},
		{fmt.Errorf("fetch: connection reset by peer"), true},
		{fmt.Errorf("fetch: %w", context.Canceled), false},
		{fmt.Errorf("create request: invalid URL"), false},
		{fmt.Errorf("read body: unexpected EOF"), false},
		{fmt.Errorf("x: %w", ErrDisallowedByRobots), false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		if got := isRetryableFetchError(tt.err); got != tt.want {
			t.Errorf("isRetryableFetchError(%q) = %v, expected %v", name, got, tt.want)
		}
	}
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		pageHits.Add(1)
		_, _ = fmt.Fprint(w, "contract")
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "clauserisk/0.1 (+https://example.com)", 1<<20, true, "", "", "")

	_, err := fetcher.FetchWithRetry(context.Background(), server.URL+"/private/terms.txt")
	if !errors.Is(err, ErrDisallowedByRobots) {
		t.Fatalf("Expected ErrDisallowedByRobots, got %v", err)
	}
	if pageHits.Load() != 0 {
		t.Errorf("Disallowed page should not be requested")
	}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/public/terms.txt"); err != nil {
		t.Errorf("Expected allowed path to fetch, got %v", err)
	}
}

func TestFetch_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, strings.Repeat("a", 1000))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "test-agent", 100, false, "", "", "")
	result, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Body) != 100 {
		t.Errorf("Expected body truncated to 100 bytes, got %d", len(result.Body))
	}
}

func TestFetch_DecodesDeclaredCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		_, _ = w.Write([]byte("Caf\xe9 lease"))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	result, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Body != "Café lease" {
		t.Errorf("Expected decoded body, got %q", result.Body)
	}
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context, rawURL string) error {
	l.calls.Add(1)
	return nil
}

func TestFetch_UsesLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	fetcher := NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	fetcher.SetLimiter(limiter)

	for i := 0; i < 3; i++ {
		if _, err := fetcher.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if limiter.calls.Load() != 3 {
		t.Errorf("Expected 3 limiter waits, got %d", limiter.calls.Load())
	}
}

type slowingLimiter struct {
	countingLimiter
	host     string
	interval time.Duration
}

func (l *slowingLimiter) SlowHost(host string, interval time.Duration) {
	l.host = host
	l.interval = interval
}

func TestFetch_CrawlDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nCrawl-delay: 3\n")
			return
		}
		_, _ = fmt.Fprint(w, "contract")
	}))
	defer server.Close()

	var slept []time.Duration
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { fetchSleepFunc = orig })

	// Without a limiter the fetcher sleeps itself
	plain := NewFetcher(5*time.Second, "clauserisk/0.1", 1<<20, true, "", "", "")
	if _, err := plain.Fetch(context.Background(), server.URL+"/terms.txt"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Fatalf("Expected one 3s sleep, got %v", slept)
	}

	// A limiter that spaces hosts takes over the delay
	limiter := &slowingLimiter{}
	limited := NewFetcher(5*time.Second, "clauserisk/0.1", 1<<20, true, "", "", "")
	limited.SetLimiter(limiter)
	if _, err := limited.Fetch(context.Background(), server.URL+"/terms.txt"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(slept) != 1 {
		t.Errorf("Expected no further sleeps, got %v", slept)
	}
	if limiter.host != strings.TrimPrefix(server.URL, "http://") || limiter.interval != 3*time.Second {
		t.Errorf("Expected host slowed to 3s, got %q %v", limiter.host, limiter.interval)
	}
	if limiter.calls.Load() != 1 {
		t.Errorf("Expected one limiter wait, got %d", limiter.calls.Load())
	}
}
