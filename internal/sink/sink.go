// Package sink implements the append-only external-link writer (§4.6):
// a worker-local batch that flushes to the external-links store and
// aggregates per-target-domain counts in the same flush.
package sink

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jamilsultanli/webscraper/internal/store"
)

// BatchSize is the worker-local batch threshold that triggers a flush.
const BatchSize = 20

// Link is one external link candidate a worker has collected, not yet
// attached to a crawl id or observation timestamp.
type Link struct {
	SourceURL    string
	TargetURL    string
	TargetDomain string
	AnchorText   string
	Rel          string
	IsNofollow   bool
}

// linkStore is the slice of *store.Store this package depends on,
// narrowed so tests can substitute an in-memory double.
type linkStore interface {
	InsertLinks(ctx context.Context, rows []store.LinkRow) error
	UpsertDomainAggregates(ctx context.Context, aggs []store.DomainAggregate) error
}

// Sink batches external links for one worker and flushes them to the
// store. Not safe for concurrent use by multiple goroutines — each
// worker owns its own Sink.
type Sink struct {
	store   linkStore
	crawlID int64
	logger  *zerolog.Logger

	batch []Link
}

// New creates a Sink bound to one crawl.
func New(s linkStore, crawlID int64, logger *zerolog.Logger) *Sink {
	return &Sink{store: s, crawlID: crawlID, logger: logger}
}

// Add appends a link to the local batch, flushing automatically once the
// batch reaches BatchSize (§4.8 step 6). Flush errors are logged and
// swallowed — persistence errors never stop the crawl (§7).
func (s *Sink) Add(ctx context.Context, l Link) {
	s.batch = append(s.batch, l)

	if len(s.batch) >= BatchSize {
		s.Flush(ctx)
	}
}

// Flush writes out any buffered links and clears the batch, regardless
// of whether the threshold has been reached. Call at worker drain so no
// partial batch is lost (§4.6).
func (s *Sink) Flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}

	now := time.Now()

	rows := make([]store.LinkRow, len(s.batch))
	counts := make(map[string]int)

	for i, l := range s.batch {
		rows[i] = store.LinkRow{
			CrawlID:      s.crawlID,
			SourceURL:    l.SourceURL,
			TargetURL:    l.TargetURL,
			TargetDomain: l.TargetDomain,
			AnchorText:   l.AnchorText,
			Rel:          l.Rel,
			IsNofollow:   l.IsNofollow,
			ObservedAt:   now,
		}

		counts[l.TargetDomain]++
	}

	if err := s.store.InsertLinks(ctx, rows); err != nil {
		s.logError(err, "insert external links failed")
	}

	aggs := make([]store.DomainAggregate, 0, len(counts))
	for domain, count := range counts {
		aggs = append(aggs, store.DomainAggregate{
			CrawlID:      s.crawlID,
			TargetDomain: domain,
			Count:        count,
			ObservedAt:   now,
		})
	}

	if err := s.store.UpsertDomainAggregates(ctx, aggs); err != nil {
		s.logError(err, "upsert domain aggregates failed")
	}

	s.batch = s.batch[:0]
}

func (s *Sink) logError(err error, msg string) {
	if s.logger == nil {
		return
	}

	s.logger.Error().Err(err).Msg(msg)
}
