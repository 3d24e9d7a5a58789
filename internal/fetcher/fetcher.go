// Package fetcher performs the single HTTP GET operation the worker pool
// uses to retrieve a page: redirect-following, timeout-bounded, and
// content-type gated. Page fetches are attempted once per frontier pop;
// retry-with-backoff is reserved for sitemap/robots fetches (internal/sitemap).
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jamilsultanli/webscraper/internal/failure"
)

const (
	// Timeout is the hard per-request timeout (§4.4).
	Timeout = 30 * time.Second

	maxBodySize = 20 * 1024 * 1024
)

// Cause enumerates the fetch error taxonomy.
type Cause string

const (
	CauseRequestBuild Cause = "request_build"
	CauseNetwork      Cause = "network"
	CauseHTTPStatus   Cause = "http_status"
)

// Error is the fetcher's ClassifiedError: always Recoverable, since §7
// states fetch errors are logged, counted, and the crawl continues.
type Error struct {
	Cause      Cause
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s: status %d", e.URL, e.Cause, e.StatusCode)
	}

	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Cause, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Severity() failure.Severity { return failure.Recoverable }

func (e *Error) Retryable() bool { return false }

var _ failure.ClassifiedError = (*Error)(nil)

// Result is the outcome of a successful fetch.
type Result struct {
	FinalURL    string
	ContentType string
	Body        []byte // empty unless ContentType is text/html
	StatusCode  int
}

// Fetcher issues the single-attempt GET operation pages use. Each
// worker in the pool owns its own Fetcher, so CrawlDelay paces that
// worker alone rather than the whole pool (§5's per-worker pacing).
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// New creates a Fetcher with the fixed user-agent and timeout the spec
// requires. A zero crawlDelay leaves the fetcher unpaced.
func New(userAgent string, crawlDelay time.Duration) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: Timeout,
		},
		userAgent: userAgent,
	}

	if crawlDelay > 0 {
		f.limiter = rate.NewLimiter(rate.Every(crawlDelay), 1)
	}

	return f
}

// Fetch performs the GET, following redirects transparently. A 4xx/5xx (or
// sub-200) terminal status yields a ClassifiedError; a 3xx terminal status
// left after redirect following counts as success. A successful non-HTML response
// yields a Result with an empty Body (the URL is still "crawled"). Blocks
// on the per-worker rate limiter before issuing the request.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &Error{Cause: CauseNetwork, URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Cause: CauseRequestBuild, URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Cause: CauseNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &Error{Cause: CauseHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	result := &Result{
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if !isHTML(result.ContentType) {
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Cause: CauseNetwork, URL: rawURL, Err: err}
	}

	result.Body = body

	return result, nil
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}
