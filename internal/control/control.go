// Package control implements the Control API (§6) and the crawl
// controller (§4.9): the top-level lifecycle that seeds a frontier,
// drives a worker pool to drain, and publishes status transitions.
package control

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jamilsultanli/webscraper/internal/checkpoint"
	"github.com/jamilsultanli/webscraper/internal/config"
	"github.com/jamilsultanli/webscraper/internal/frontier"
	"github.com/jamilsultanli/webscraper/internal/health"
	"github.com/jamilsultanli/webscraper/internal/sitemap"
	"github.com/jamilsultanli/webscraper/internal/store"
	"github.com/jamilsultanli/webscraper/internal/urlscope"
	"github.com/jamilsultanli/webscraper/internal/worker"
)

// Error is a validation failure surfaced synchronously from Start; no
// crawl record is created for these (§7).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// StartResult is the Control API's start(url, options) return value.
type StartResult struct {
	CrawlID    int64
	BaseDomain string
}

// activeRun tracks the most recently started crawl's live counters and
// frontier, for reporting on the health/stats endpoint while it runs.
type activeRun struct {
	baseDomain string
	counters   *worker.Counters
	frontier   *frontier.Frontier
}

// Controller owns the top-level crawl lifecycle.
type Controller struct {
	cfg    *config.Config
	store  *store.Store
	logger *zerolog.Logger

	mu      sync.Mutex
	current *activeRun
}

// New creates a Controller.
func New(cfg *config.Config, st *store.Store, logger *zerolog.Logger) *Controller {
	return &Controller{cfg: cfg, store: st, logger: logger}
}

// Start validates the URL, creates a new crawl record, and launches the
// crawl in the background. It returns as soon as the record exists — the
// crawl itself runs asynchronously. A resumed crawl also gets a new
// record; only its frontier state comes from the checkpoint.
//
// Pipeline:
//  1. Validate scheme.
//  2. Derive base domain.
//  3. Resolve per-crawl options against configured defaults.
//  4. Create a new crawl record.
//  5. Launch the background run.
func (c *Controller) Start(ctx context.Context, startURL string, opts config.Options) (StartResult, error) {
	parsed, err := url.Parse(startURL)
	if err != nil {
		return StartResult{}, &Error{Message: fmt.Sprintf("invalid start url: %v", err)}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return StartResult{}, &Error{Message: "start url must be http or https"}
	}

	baseDomain, err := urlscope.BaseDomain(startURL)
	if err != nil {
		return StartResult{}, &Error{Message: fmt.Sprintf("cannot derive base domain: %v", err)}
	}

	resolved := c.cfg.Resolve(opts)

	domain, err := c.store.CreateCrawl(ctx, baseDomain, resolved.MaxDepth)
	if err != nil {
		return StartResult{}, fmt.Errorf("create crawl record: %w", err)
	}

	go c.run(context.Background(), domain.ID, baseDomain, startURL, resolved)

	return StartResult{CrawlID: domain.ID, BaseDomain: baseDomain}, nil
}

// run seeds the frontier (resuming from checkpoint when requested and
// available), launches the worker pool, awaits drain, and finalizes the
// crawl record. It never propagates errors: each failing step is logged
// and the run goes on. The run always ends by setting status completed;
// no path in it sets status failed.
func (c *Controller) run(ctx context.Context, crawlID int64, baseDomain, startURL string, resolved config.Resolved) {
	if err := c.store.SetStatus(ctx, crawlID, store.StatusProcessing); err != nil {
		c.logError(err, "set status processing failed")
	}

	cp := checkpoint.New(c.store, c.logger)

	f, pagesAlreadyCrawled, crawledURLs := c.seed(ctx, cp, baseDomain, startURL, resolved)

	counters := &worker.Counters{PagesCrawled: int64(pagesAlreadyCrawled)}
	crawled := worker.NewCrawledFrom(crawledURLs)

	c.mu.Lock()
	c.current = &activeRun{baseDomain: baseDomain, counters: counters, frontier: f}
	c.mu.Unlock()

	pool := &worker.Pool{
		Size:              resolved.Concurrency,
		CrawlDelay:        resolved.CrawlDelay,
		MaxDepth:          resolved.MaxDepth,
		CheckpointEvery:   resolved.CheckpointInterval,
		BaseDomain:        baseDomain,
		IncludeSubdomains: resolved.IncludeSubdomains,
		FollowPagination:  resolved.FollowPagination,
		IncludeLangVar:    resolved.IncludeLanguageVariants,
		Frontier:          f,
		UserAgent:         resolved.UserAgent,
		CrawlID:           crawlID,
		Store:             c.store,
		Checkpoint:        cp,
		Counters:          counters,
		Crawled:           crawled,
		Logger:            c.logger,
	}

	pool.Run(ctx)

	pending, discovered := f.Snapshot()
	cp.Save(ctx, baseDomain, checkpoint.State{
		Pending:      pending,
		Discovered:   discovered,
		Crawled:      crawled.Snapshot(),
		PagesCrawled: int(counters.PagesCrawled),
	})

	if err := c.store.UpdateCounters(ctx, crawlID, int(counters.PagesCrawled), int(counters.ExternalLinksTotal)); err != nil {
		c.logError(err, "final counter update failed")
	}

	if err := c.store.SetStatus(ctx, crawlID, store.StatusCompleted); err != nil {
		c.logError(err, "set status completed failed")
	}
}

// seed builds the frontier for a run: resumed from checkpoint when a
// non-empty one exists, otherwise freshly seeded with the start URL plus
// sitemap/robots discovery (§4.9). Also returns the set of final URLs
// already crawled as of the checkpoint (empty on a fresh seed), so the
// worker pool's at-most-once guard survives a resume.
func (c *Controller) seed(ctx context.Context, cp *checkpoint.Store, baseDomain, startURL string, resolved config.Resolved) (*frontier.Frontier, int, []string) {
	if resolved.Resume {
		if state, ok := cp.Load(ctx, baseDomain); ok && len(state.Pending) > 0 {
			return frontier.Restore(resolved.MaxPages, state.Pending, state.Discovered), state.PagesCrawled, state.Crawled
		}
	}

	f := frontier.New(resolved.MaxPages)
	f.Admit(frontier.Entry{URL: startURL, Depth: 0, Type: "page", Priority: urlscope.PriorityStart})

	if resolved.FollowSitemaps {
		disco := sitemap.New(resolved.UserAgent, c.logger)

		parsed, err := url.Parse(startURL)
		if err == nil {
			root := parsed.Scheme + "://" + parsed.Host

			for _, e := range disco.Discover(ctx, root, resolved.MaxPages) {
				target, err := url.Parse(e.URL)
				if err != nil || !urlscope.InScope(target.Hostname(), baseDomain, resolved.IncludeSubdomains) {
					continue
				}

				f.Admit(frontier.Entry{URL: e.URL, Depth: 1, Type: e.Type, Priority: e.Priority})
			}
		}
	}

	return f, 0, nil
}

// Status is the Control API's status(base_domain) response.
type Status struct {
	Domain store.Domain
}

// Status returns the current crawl record for a base domain.
func (c *Controller) Status(ctx context.Context, baseDomain string) (Status, error) {
	d, err := c.store.GetCrawl(ctx, baseDomain)
	if err != nil {
		return Status{}, err
	}

	return Status{Domain: d}, nil
}

// LinksPage is the Control API's links(...) paginated response.
type LinksPage struct {
	Rows []store.LinkRow
}

// RelType enumerates the links() rel_type filter values.
type RelType string

const (
	RelAll      RelType = "all"
	RelNofollow RelType = "nofollow"
	RelDofollow RelType = "dofollow"
)

// Links returns a filtered, paginated page of outgoing links for the
// base domain's latest crawl id; earlier crawls cannot be selected.
func (c *Controller) Links(ctx context.Context, baseDomain string, page, limit int, textFilter string, relType RelType, domainFilter string) (LinksPage, error) {
	d, err := c.store.GetCrawl(ctx, baseDomain)
	if err != nil {
		return LinksPage{}, err
	}

	filter := store.LinkFilter{Page: page, Limit: limit, TextFilter: textFilter, DomainFilter: domainFilter}

	switch relType {
	case RelNofollow:
		filter.RelType = "nofollow"
	case RelDofollow:
		filter.RelType = ""
	}

	rows, err := c.store.ListLinks(ctx, d.ID, filter)
	if err != nil {
		return LinksPage{}, err
	}

	if relType == RelDofollow {
		rows = filterDofollow(rows)
	}

	return LinksPage{Rows: rows}, nil
}

func filterDofollow(rows []store.LinkRow) []store.LinkRow {
	out := rows[:0]

	for _, r := range rows {
		if !r.IsNofollow {
			out = append(out, r)
		}
	}

	return out
}

// Stats implements health.StatsSource, reporting the most recently
// started crawl's live counters alongside its committed status row.
func (c *Controller) Stats() health.Stats {
	c.mu.Lock()
	run := c.current
	c.mu.Unlock()

	if run == nil {
		return health.Stats{}
	}

	stats := health.Stats{
		BaseDomain:    run.baseDomain,
		FrontierSize:  run.frontier.Len(),
		PagesCrawled:  int(run.counters.PagesCrawled),
		FetchErrors:   int(run.counters.ErrorCount),
		ExternalLinks: int(run.counters.ExternalLinksTotal),
	}

	if d, err := c.store.GetCrawl(context.Background(), run.baseDomain); err == nil {
		stats.Status = d.Status
	}

	return stats
}

// Ping implements health.StatsSource, checking database connectivity.
func (c *Controller) Ping(ctx context.Context) error {
	return c.store.Pool.Ping(ctx)
}

func (c *Controller) logError(err error, msg string) {
	if c.logger == nil {
		return
	}

	c.logger.Error().Err(err).Msg(msg)
}
