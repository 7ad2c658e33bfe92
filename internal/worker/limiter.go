package worker

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out a token bucket per host. The fetcher keys buckets by
// URL host and the explainer by "llm://<provider>"; references without a
// host (local files) pass straight through.
type Limiter struct {
	limit rate.Limit
	burst int
	hosts sync.Map // host -> *rate.Limiter
}

// NewLimiter creates a limiter allowing requestsPerSecond per host. A
// non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{limit: limit, burst: burst}
}

// Wait blocks until a request to ref's host may proceed
func (l *Limiter) Wait(ctx context.Context, ref string) error {
	bucket, err := l.bucketFor(ref)
	if err != nil || bucket == nil {
		return err
	}
	return bucket.Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so
func (l *Limiter) Allow(ref string) bool {
	bucket, err := l.bucketFor(ref)
	if err != nil {
		return false
	}
	return bucket == nil || bucket.Allow()
}

// SetHostRate replaces one host's bucket
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.burst
	}
	l.hosts.Store(host, rate.NewLimiter(rate.Limit(requestsPerSecond), burst))
}

// SlowHost spaces requests to host at least interval apart, as a robots.txt
// crawl delay asks. It never raises a host's rate.
func (l *Limiter) SlowHost(host string, interval time.Duration) {
	if host == "" || interval <= 0 {
		return
	}
	limit := rate.Every(interval)
	if limit < l.bucket(host).Limit() {
		l.SetHostRate(host, float64(limit), 1)
	}
}

func (l *Limiter) bucketFor(ref string) (*rate.Limiter, error) {
	host, err := hostKey(ref)
	if err != nil || host == "" {
		return nil, err
	}
	return l.bucket(host), nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	if b, ok := l.hosts.Load(host); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.hosts.LoadOrStore(host, rate.NewLimiter(l.limit, l.burst))
	return b.(*rate.Limiter)
}

func hostKey(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return parsed.Host, nil
}
