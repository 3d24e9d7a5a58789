// Package worker implements the cooperative worker pool (§4.8): N
// workers draw from a shared frontier, fetch, extract, and feed the
// frontier/sink/checkpoint, all coordinating only through those shared,
// already-synchronized components.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamilsultanli/webscraper/internal/checkpoint"
	"github.com/jamilsultanli/webscraper/internal/extract"
	"github.com/jamilsultanli/webscraper/internal/fetcher"
	"github.com/jamilsultanli/webscraper/internal/frontier"
	"github.com/jamilsultanli/webscraper/internal/sink"
	"github.com/jamilsultanli/webscraper/internal/store"
)

// Store is the slice of *store.Store the worker pool depends on,
// narrowed so tests can substitute an in-memory double.
type Store interface {
	InsertLinks(ctx context.Context, rows []store.LinkRow) error
	UpsertDomainAggregates(ctx context.Context, aggs []store.DomainAggregate) error
	UpdateCounters(ctx context.Context, crawlID int64, pagesCrawled, externalLinksTotal int) error
}

// emptyFrontierWait is how long a worker sleeps after an empty pop
// before rechecking and, if still empty, exiting (§4.8 step 1).
const emptyFrontierWait = 1000 * time.Millisecond

// CounterUpdateEvery and CheckpointEvery are the step-7/step-8 cadences.
const CounterUpdateEvery = 10

// Crawled is the shared at-most-once set of fetched final URLs. The
// frontier's own discovered set prevents re-admission, but crawled
// additionally guards the rarer case of two differently-discovered
// frontier entries resolving, after redirects, to the same final URL.
type Crawled struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewCrawled creates an empty Crawled set.
func NewCrawled() *Crawled {
	return &Crawled{seen: make(map[string]struct{})}
}

// NewCrawledFrom creates a Crawled set pre-populated from a checkpointed
// list of final URLs, so a resumed crawl keeps the at-most-once guard
// earned before the crash or restart.
func NewCrawledFrom(urls []string) *Crawled {
	c := NewCrawled()
	for _, u := range urls {
		c.seen[u] = struct{}{}
	}

	return c
}

// Snapshot returns every URL currently marked as crawled, for checkpoint
// serialization. It does not mutate state.
func (c *Crawled) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.seen))
	for u := range c.seen {
		out = append(out, u)
	}

	return out
}

// MarkIfNew records url as crawled, returning true if it was not
// already present.
func (c *Crawled) MarkIfNew(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[url]; ok {
		return false
	}

	c.seen[url] = struct{}{}

	return true
}

// Counters holds the shared atomically-updated counters §5 names:
// pages_crawled and error_count.
type Counters struct {
	PagesCrawled       int64
	ErrorCount         int64
	ExternalLinksTotal int64
}

// Pool runs Size workers cooperatively draining a frontier.
type Pool struct {
	Size              int
	CrawlDelay        time.Duration
	MaxDepth          int
	CheckpointEvery   int
	BaseDomain        string
	IncludeSubdomains bool
	FollowPagination  bool
	IncludeLangVar    bool

	Frontier   *frontier.Frontier
	UserAgent  string
	CrawlID    int64
	Store      Store
	Checkpoint *checkpoint.Store
	Counters   *Counters
	Crawled    *Crawled
	Logger     *zerolog.Logger
}

// Run launches the pool and blocks until every worker has drained the
// frontier or ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < p.Size; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}

	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	s := sink.New(p.Store, p.CrawlID, p.Logger)
	defer s.Flush(ctx)

	// Each worker paces itself with its own Fetcher/limiter rather than
	// sharing one across the pool, so CrawlDelay is per-worker (§5).
	f := fetcher.New(p.UserAgent, p.CrawlDelay)

	for {
		if ctx.Err() != nil {
			return
		}

		entry, ok := p.Frontier.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(emptyFrontierWait):
			}

			entry, ok = p.Frontier.Pop()
			if !ok {
				return
			}
		}

		p.processEntry(ctx, f, entry, s)
	}
}

func (p *Pool) processEntry(ctx context.Context, f *fetcher.Fetcher, entry frontier.Entry, s *sink.Sink) {
	if entry.Depth > p.MaxDepth {
		return
	}

	result, err := f.Fetch(ctx, entry.URL)
	if err != nil {
		atomic.AddInt64(&p.Counters.ErrorCount, 1)
		p.logDebug(err, "fetch failed")

		return
	}

	if !p.Crawled.MarkIfNew(result.FinalURL) {
		return
	}

	pagesCrawled := atomic.AddInt64(&p.Counters.PagesCrawled, 1)

	if len(result.Body) > 0 {
		p.extractAndAdmit(ctx, result.Body, result.FinalURL, entry.Depth, s)
	}

	if pagesCrawled%CounterUpdateEvery == 0 {
		p.updateCounters(ctx)
	}

	if p.CheckpointEvery > 0 && pagesCrawled%int64(p.CheckpointEvery) == 0 {
		p.saveCheckpoint(ctx, int(pagesCrawled))
	}
}

func (p *Pool) extractAndAdmit(ctx context.Context, body []byte, finalURL string, depth int, s *sink.Sink) {
	scope := extract.ScopeParams{
		BaseDomain:              p.BaseDomain,
		IncludeSubdomains:       p.IncludeSubdomains,
		FollowPagination:        p.FollowPagination,
		IncludeLanguageVariants: p.IncludeLangVar,
	}

	anchors, err := extract.Anchors(body, finalURL, scope)
	if err != nil {
		p.logDebug(err, "anchor extraction failed")
	} else {
		for _, fc := range anchors.Frontier {
			p.Frontier.Admit(frontier.Entry{
				URL:       fc.URL,
				Depth:     depth + 1,
				SourceURL: finalURL,
				Type:      fc.Type,
				Priority:  fc.Priority,
			})
		}

		for _, ec := range anchors.External {
			s.Add(ctx, sink.Link{
				SourceURL:    finalURL,
				TargetURL:    ec.TargetURL,
				TargetDomain: ec.TargetDomain,
				AnchorText:   ec.AnchorText,
				Rel:          ec.Rel,
				IsNofollow:   ec.IsNofollow,
			})
			atomic.AddInt64(&p.Counters.ExternalLinksTotal, 1)
		}
	}

	jsonLD, err := extract.JSONLD(body, finalURL, scope)
	if err != nil {
		p.logDebug(err, "json-ld extraction failed")
		return
	}

	for _, fc := range jsonLD {
		p.Frontier.Admit(frontier.Entry{
			URL:       fc.URL,
			Depth:     depth + 1,
			SourceURL: finalURL,
			Type:      fc.Type,
			Priority:  fc.Priority,
		})
	}
}

func (p *Pool) updateCounters(ctx context.Context) {
	pages := int(atomic.LoadInt64(&p.Counters.PagesCrawled))
	links := int(atomic.LoadInt64(&p.Counters.ExternalLinksTotal))

	if err := p.Store.UpdateCounters(ctx, p.CrawlID, pages, links); err != nil {
		p.logDebug(err, "update crawl counters failed")
	}
}

func (p *Pool) saveCheckpoint(ctx context.Context, pagesCrawled int) {
	pending, discovered := p.Frontier.Snapshot()

	p.Checkpoint.Save(ctx, p.BaseDomain, checkpoint.State{
		Pending:      pending,
		Discovered:   discovered,
		PagesCrawled: pagesCrawled,
		Crawled:      p.Crawled.Snapshot(),
	})
}

func (p *Pool) logDebug(err error, msg string) {
	if p.Logger == nil {
		return
	}

	p.Logger.Debug().Err(err).Msg(msg)
}
