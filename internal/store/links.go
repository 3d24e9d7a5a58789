package store

import (
	"context"
	"time"
)

// LinkRow is one external link record flushed by the sink (§4.6).
type LinkRow struct {
	CrawlID      int64
	SourceURL    string
	TargetURL    string
	TargetDomain string
	AnchorText   string
	Rel          string
	IsNofollow   bool
	ObservedAt   time.Time
}

// InsertLinks bulk-inserts a worker's flushed batch. Duplicates (matched
// by the table's unique constraint) are silently discarded — dedup
// across the crawl is the storage layer's job, not the sink's (§4.6).
func (s *Store) InsertLinks(ctx context.Context, rows []LinkRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := make([][]any, len(rows))
	for i, r := range rows {
		batch[i] = []any{r.CrawlID, r.SourceURL, r.TargetURL, r.TargetDomain, r.AnchorText, r.Rel, r.IsNofollow, r.ObservedAt}
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, row := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO outgoing_links (crawl_id, source_url, target_url, target_domain, anchor_text, rel, is_nofollow, observed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT DO NOTHING
		`, row...)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DomainAggregate is one group in a batch, aggregated by target_domain,
// ready for the outgoing_domains upsert (§4.6 step 2).
type DomainAggregate struct {
	CrawlID      int64
	TargetDomain string
	Count        int
	ObservedAt   time.Time
}

// UpsertDomainAggregates applies one upsert per group: increment
// link_count by the batch count, bump last_seen_at, and set
// first_seen_at only on first insert.
func (s *Store) UpsertDomainAggregates(ctx context.Context, aggs []DomainAggregate) error {
	if len(aggs) == 0 {
		return nil
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, a := range aggs {
		_, err := tx.Exec(ctx, `
			INSERT INTO outgoing_domains (crawl_id, target_domain, link_count, first_seen_at, last_seen_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (crawl_id, target_domain) DO UPDATE
			SET link_count = outgoing_domains.link_count + EXCLUDED.link_count,
			    last_seen_at = EXCLUDED.last_seen_at
		`, a.CrawlID, a.TargetDomain, a.Count, a.ObservedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// LinkFilter narrows a paginated links listing for the Control API's
// links operation.
type LinkFilter struct {
	Page         int
	Limit        int
	TextFilter   string
	RelType      string
	DomainFilter string
}

// ListLinks returns a page of outgoing_links rows for a crawl, most
// recently observed first.
func (s *Store) ListLinks(ctx context.Context, crawlID int64, f LinkFilter) ([]LinkRow, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	page := f.Page
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * limit

	rows, err := s.Pool.Query(ctx, `
		SELECT crawl_id, source_url, target_url, target_domain, anchor_text, rel, is_nofollow, observed_at
		FROM outgoing_links
		WHERE crawl_id = $1
		  AND ($2 = '' OR anchor_text ILIKE '%' || $2 || '%')
		  AND ($3 = '' OR rel ILIKE '%' || $3 || '%')
		  AND ($4 = '' OR target_domain = $4)
		ORDER BY observed_at DESC
		LIMIT $5 OFFSET $6
	`, crawlID, f.TextFilter, f.RelType, f.DomainFilter, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LinkRow

	for rows.Next() {
		var r LinkRow
		if err := rows.Scan(&r.CrawlID, &r.SourceURL, &r.TargetURL, &r.TargetDomain, &r.AnchorText, &r.Rel, &r.IsNofollow, &r.ObservedAt); err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, rows.Err()
}
