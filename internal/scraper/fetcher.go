package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/abdulachik/sonetobot/internal/metrics"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; SonetoBot/1.0)"
	defaultTimeout   = 15 * time.Second
	maxBodyBytes     = 2 << 20
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// FetcherConfig holds configuration for the page fetcher.
type FetcherConfig struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
}

// Fetcher downloads pages from the source site as UTF-8 text.
type Fetcher struct {
	client        *http.Client
	userAgent     string
	timeout       time.Duration
	respectRobots bool

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData // nil entry: no usable robots.txt
}

// NewFetcher creates a new page fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Fetcher{
		client:        client,
		userAgent:     ua,
		timeout:       timeout,
		respectRobots: cfg.RespectRobots,
		robots:        make(map[string]*robotstxt.RobotsData),
	}
}

// Get fetches rawURL and returns its body decoded to UTF-8. Each call is
// bounded by the configured timeout.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	if f.respectRobots && !f.allowed(ctx, u) {
		metrics.PageFailures.WithLabelValues("robots").Inc()
		return "", fmt.Errorf("GET %s: %w", rawURL, ErrDisallowed)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.PageFailures.WithLabelValues("network").Inc()
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.PageFailures.WithLabelValues("status").Inc()
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if errors.Is(err, io.EOF) {
		// Empty body: left for the extractor to report as a miss.
		metrics.PagesFetched.Inc()
		return "", nil
	}
	if err != nil {
		metrics.PageFailures.WithLabelValues("charset").Inc()
		return "", fmt.Errorf("detect charset: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		metrics.PageFailures.WithLabelValues("network").Inc()
		return "", fmt.Errorf("read response: %w", err)
	}

	metrics.PagesFetched.Inc()
	metrics.BytesFetched.Add(float64(len(body)))

	return string(body), nil
}

// allowed checks robots.txt for u's host. A parsed file or a 4xx answer is
// cached for the host. Network errors and 5xx answers allow the request
// without caching, so the next call tries again.
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	f.mu.Lock()
	data, ok := f.robots[u.Host]
	f.mu.Unlock()

	if !ok {
		var final bool
		data, final = f.fetchRobots(ctx, u)
		if final {
			f.mu.Lock()
			f.robots[u.Host] = data
			f.mu.Unlock()
		}
	}

	if data == nil {
		return true
	}
	return data.TestAgent(u.RequestURI(), f.userAgent)
}

// fetchRobots returns the host's rules, nil meaning allow all. final is false
// when the answer may change on retry.
func (f *Fetcher) fetchRobots(ctx context.Context, u *url.URL) (data *robotstxt.RobotsData, final bool) {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, true
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Debug("robots.txt unreachable, allowing for now", "host", u.Host, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		slog.Debug("robots.txt server error, allowing for now", "host", u.Host, "status", resp.StatusCode)
		return nil, false
	case resp.StatusCode >= 400:
		return nil, true
	}

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		slog.Debug("robots.txt unreadable, allowing for now", "host", u.Host, "error", err)
		return nil, false
	}
	return data, true
}
