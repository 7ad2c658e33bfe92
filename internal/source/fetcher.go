package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/clauserisk/internal/util"
	"golang.org/x/net/html/charset"
)

// fetchSleepFunc is replaced in tests to skip backoff delays
var fetchSleepFunc = time.Sleep

const (
	maxFetchAttempts = 3
	fetchBackoffBase = 500 * time.Millisecond
)

// Limiter throttles requests per host
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// hostSlower is a Limiter that can take over a robots.txt crawl delay
type hostSlower interface {
	SlowHost(host string, interval time.Duration)
}

// Fetcher downloads contract documents over HTTP
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	limiter    Limiter
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, respectRobots bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	proxy := util.NewProxyFunc(httpProxy, httpsProxy, noProxy)
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: proxy,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}

	if respectRobots {
		f.robots = util.NewRobotsChecker(util.NormalizeUserAgent(userAgent), timeout, proxy)
	}

	return f
}

// SetLimiter rate limits requests per host
func (f *Fetcher) SetLimiter(l Limiter) {
	f.limiter = l
}

// applyCrawlDelay hands the delay to the limiter when it can space requests
// per host, and sleeps otherwise
func (f *Fetcher) applyCrawlDelay(rawURL string, delay time.Duration) {
	if slower, ok := f.limiter.(hostSlower); ok {
		if parsed, err := url.Parse(rawURL); err == nil {
			slower.SlowHost(parsed.Host, delay)
			return
		}
	}
	fetchSleepFunc(delay)
}

// FetchResult contains the fetched body, decoded to UTF-8, and metadata
type FetchResult struct {
	Body        string
	ContentType string
	StatusCode  int
	FinalURL    string
}

// Fetch retrieves a document from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowedByRobots)
		}
		if delay > 0 {
			f.applyCrawlDelay(rawURL, delay)
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")

	// Read body with size limit
	limited := io.LimitReader(resp.Body, f.maxBytes)
	reader, err := charset.NewReader(limited, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        string(body),
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (network errors, 429, 5xx)
// with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			delay := fetchBackoffBase * time.Duration(1<<(attempt-1))
			slog.Debug("Retrying fetch", "url", rawURL, "attempt", attempt+1, "delay", delay, "error", lastErr)
			fetchSleepFunc(delay)
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableFetchError(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// isRetryableFetchError reports whether another attempt could succeed
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrDisallowedByRobots) {
		return false
	}

	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return false
		}
		code, convErr := strconv.Atoi(fields[0])
		if convErr != nil {
			return false
		}
		return code == http.StatusTooManyRequests || code >= 500
	}

	return strings.HasPrefix(msg, "fetch: ")
}
