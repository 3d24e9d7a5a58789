// Package sitemap implements seed-time discovery (§4.2): fixed candidate
// sitemap paths, robots.txt Sitemap: directives, and recursive sitemap
// index expansion, all with retry-with-backoff on individual fetches.
package sitemap

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/jamilsultanli/webscraper/internal/failure"
)

const (
	fetchTimeout = 15 * time.Second
	maxBodySize  = 10 * 1024 * 1024

	retryAttempts    = 3
	retryInitDelay   = 500 * time.Millisecond
	retryMultiplier  = 2.0

	// PrioritySitemap is the fixed admission priority for a sitemap's
	// own non-.xml <loc> entries (§4.2).
	PrioritySitemap = 8
	// EntryTypeSitemap is the frontier entry type assigned to such entries.
	EntryTypeSitemap = "sitemap"

	// PriorityFeed is the fixed admission priority for article links
	// discovered by probing a feed (§4.1's feed-URL priority rule).
	PriorityFeed = 6
	// EntryTypeFeed is the frontier entry type assigned to such entries.
	EntryTypeFeed = "page"
)

// candidatePaths are the fixed candidate sitemap URLs tried at seed time.
var candidatePaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemaps.xml",
	"/sitemap/sitemap.xml",
}

// feedCandidatePaths are the fixed candidate feed paths probed at seed
// time, alongside the sitemap candidates.
var feedCandidatePaths = []string{
	"/feed",
	"/rss.xml",
	"/atom.xml",
	"/feed.xml",
}

// Cause enumerates the sitemap/robots fetch error taxonomy.
type Cause string

const (
	CauseNetwork    Cause = "network"
	CauseHTTPStatus Cause = "http_status"
	CauseParse      Cause = "parse"
)

// Error is always Recoverable: a failed sitemap or robots fetch is
// best-effort and never aborts the crawl (§4.2, §7).
type Error struct {
	Cause Cause
	URL   string
	Err   error
}

func (e *Error) Error() string  { return fmt.Sprintf("sitemap %s: %s: %v", e.URL, e.Cause, e.Err) }
func (e *Error) Unwrap() error  { return e.Err }
func (e *Error) Severity() failure.Severity { return failure.Recoverable }
func (e *Error) Retryable() bool { return false }

var _ failure.ClassifiedError = (*Error)(nil)

// Entry is a URL discovered by sitemap processing, ready for frontier
// admission.
type Entry struct {
	URL      string
	Priority int
	Type     string
}

// Discoverer fetches and parses sitemaps and robots.txt for one base
// domain, memoizing sitemap URLs already visited during this crawl.
type Discoverer struct {
	client    *http.Client
	userAgent string
	logger    *zerolog.Logger

	visited map[string]struct{}
}

// New creates a Discoverer. logger may be nil.
func New(userAgent string, logger *zerolog.Logger) *Discoverer {
	return &Discoverer{
		client:    &http.Client{Timeout: fetchTimeout},
		userAgent: userAgent,
		logger:    logger,
		visited:   make(map[string]struct{}),
	}
}

// Discover runs the full seed-time discovery: the fixed candidate paths
// plus any Sitemap: lines from robots.txt, recursively expanding sitemap
// indexes. maxEntries bounds recursion the way the frontier cap would.
func (d *Discoverer) Discover(ctx context.Context, baseURL string, maxEntries int) []Entry {
	var entries []Entry

	add := func(found []Entry) {
		remaining := maxEntries - len(entries)
		if remaining <= 0 {
			return
		}

		if len(found) > remaining {
			found = found[:remaining]
		}

		entries = append(entries, found...)
	}

	for _, path := range candidatePaths {
		if len(entries) >= maxEntries {
			break
		}

		found, err := d.fetchAndParse(ctx, baseURL+path, maxEntries-len(entries))
		if err != nil {
			d.logDebug(err, baseURL+path)
			continue
		}

		add(found)
	}

	for _, sitemapURL := range d.robotsSitemaps(ctx, baseURL) {
		if len(entries) >= maxEntries {
			break
		}

		found, err := d.fetchAndParse(ctx, sitemapURL, maxEntries-len(entries))
		if err != nil {
			d.logDebug(err, sitemapURL)
			continue
		}

		add(found)
	}

	for _, path := range feedCandidatePaths {
		if len(entries) >= maxEntries {
			break
		}

		found, err := d.fetchFeed(ctx, baseURL+path, maxEntries-len(entries))
		if err != nil {
			d.logDebug(err, baseURL+path)
			continue
		}

		add(found)
	}

	return entries
}

// fetchFeed probes a candidate feed URL and, if it parses as RSS/Atom,
// admits its item links as feed-typed frontier entries.
func (d *Discoverer) fetchFeed(ctx context.Context, feedURL string, budget int) ([]Entry, error) {
	if _, seen := d.visited[feedURL]; seen {
		return nil, nil
	}

	d.visited[feedURL] = struct{}{}

	body, err := d.fetchWithRetry(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Cause: CauseParse, URL: feedURL, Err: err}
	}

	var entries []Entry

	for _, item := range parsed.Items {
		if len(entries) >= budget {
			break
		}

		if item.Link == "" {
			continue
		}

		entries = append(entries, Entry{URL: item.Link, Priority: PriorityFeed, Type: EntryTypeFeed})
	}

	return entries, nil
}

// robotsSitemaps fetches /robots.txt (best-effort, never fatal) and
// returns any Sitemap: directive values. Disallow/Allow rules are not
// parsed or enforced.
func (d *Discoverer) robotsSitemaps(ctx context.Context, baseURL string) []string {
	body, err := d.fetchWithRetry(ctx, baseURL+"/robots.txt")
	if err != nil {
		d.logDebug(err, baseURL+"/robots.txt")
		return nil
	}

	var sitemaps []string

	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}

		line = strings.TrimSpace(line)

		colon := strings.Index(line, ":")
		if colon == -1 {
			continue
		}

		field := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])

		if field == "sitemap" && value != "" {
			sitemaps = append(sitemaps, value)
		}
	}

	return sitemaps
}

// fetchAndParse fetches one sitemap URL and, if already visited, returns
// nothing (memoization per §4.2). It recurses into sitemap-of-sitemaps
// entries whose <loc> ends in .xml.
func (d *Discoverer) fetchAndParse(ctx context.Context, sitemapURL string, budget int) ([]Entry, error) {
	if _, seen := d.visited[sitemapURL]; seen {
		return nil, nil
	}

	d.visited[sitemapURL] = struct{}{}

	body, err := d.fetchWithRetry(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	locs, err := extractLocs(body)
	if err != nil {
		return nil, &Error{Cause: CauseParse, URL: sitemapURL, Err: err}
	}

	var entries []Entry

	for _, loc := range locs {
		if len(entries) >= budget {
			break
		}

		if strings.HasSuffix(strings.ToLower(loc), ".xml") {
			sub, err := d.fetchAndParse(ctx, loc, budget-len(entries))
			if err != nil {
				d.logDebug(err, loc)
				continue
			}

			entries = append(entries, sub...)

			continue
		}

		entries = append(entries, Entry{URL: loc, Priority: PrioritySitemap, Type: EntryTypeSitemap})
	}

	return entries, nil
}

// fetchWithRetry performs the GET with up to 3 attempts, 500ms initial
// delay doubled per attempt (§4.2).
func (d *Discoverer) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	b := backoff.WithMaxRetries(
		&backoff.ExponentialBackOff{
			InitialInterval:     retryInitDelay,
			Multiplier:          retryMultiplier,
			RandomizationFactor: 0,
			MaxInterval:         retryInitDelay * 8,
			MaxElapsedTime:      0,
			Clock:               backoff.SystemClock,
		},
		retryAttempts-1,
	)

	var body []byte

	op := func() error {
		b, err := d.fetchOnce(ctx, rawURL)
		if err != nil {
			return err
		}

		body = b

		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return body, nil
}

func (d *Discoverer) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Cause: CauseNetwork, URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/plain,text/xml,application/xml,*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Error{Cause: CauseNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Cause: CauseHTTPStatus, URL: rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

func (d *Discoverer) logDebug(err error, url string) {
	if d.logger == nil {
		return
	}

	d.logger.Debug().Err(err).Str("url", url).Msg("sitemap discovery step failed")
}

// sitemapFragment is a tolerant XML-fragment structure: it reads the <loc>
// of every <url> or <sitemap> child of the root element, regardless of
// whether the root is a urlset or sitemapindex (§4.2: "tolerant
// XML-fragment scan, lenient to malformed XML"). <loc> elements elsewhere
// in a well-formed document are not read.
type sitemapFragment struct {
	Locs []string `xml:"url>loc"`
	Subs []string `xml:"sitemap>loc"`
}

func extractLocs(body []byte) ([]string, error) {
	var frag sitemapFragment
	if err := xml.Unmarshal(body, &frag); err != nil {
		// Fall back to a raw <loc> scan so a partially malformed
		// document still yields whatever is recoverable.
		return scanLocsRaw(body), nil
	}

	locs := append([]string{}, frag.Locs...)
	locs = append(locs, frag.Subs...)

	return locs, nil
}

// scanLocsRaw extracts <loc>...</loc> text tolerantly without requiring
// well-formed surrounding XML.
func scanLocsRaw(body []byte) []string {
	var locs []string

	s := string(body)
	for {
		start := strings.Index(s, "<loc>")
		if start == -1 {
			break
		}

		s = s[start+len("<loc>"):]

		end := strings.Index(s, "</loc>")
		if end == -1 {
			break
		}

		locs = append(locs, strings.TrimSpace(s[:end]))
		s = s[end+len("</loc>"):]
	}

	return locs
}
