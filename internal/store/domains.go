package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Status values for the domains table's state machine (queued →
// processing → completed | failed).
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Domain is one row of the domains table — the crawl record the Control
// API's start/status operations read and write.
type Domain struct {
	ID                 int64
	BaseDomain         string
	Status             string
	PagesCrawled       int
	ExternalLinksTotal int
	MaxDepth           int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ErrNotFound is returned when a lookup by base_domain matches no row.
var ErrNotFound = errors.New("store: not found")

// CreateCrawl always inserts a fresh domains row in status queued: a
// crawl_id is never reused once terminal, even across a resume of the
// same base_domain (§3). The returned row's id is the new crawl_id.
func (s *Store) CreateCrawl(ctx context.Context, baseDomain string, maxDepth int) (Domain, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO domains (base_domain, status, max_depth)
		VALUES ($1, $2, $3)
		RETURNING id, base_domain, status, pages_crawled, external_links_total, max_depth, created_at, updated_at
	`, baseDomain, StatusQueued, maxDepth)

	return scanDomain(row)
}

// GetCrawl returns the most recent domains row for baseDomain (the
// current crawl_id for that domain), or ErrNotFound.
func (s *Store) GetCrawl(ctx context.Context, baseDomain string) (Domain, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, base_domain, status, pages_crawled, external_links_total, max_depth, created_at, updated_at
		FROM domains WHERE base_domain = $1
		ORDER BY id DESC
		LIMIT 1
	`, baseDomain)

	d, err := scanDomain(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Domain{}, ErrNotFound
	}

	return d, err
}

// SetStatus transitions a specific crawl_id to a terminal or
// intermediate status.
func (s *Store) SetStatus(ctx context.Context, crawlID int64, status string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE domains SET status = $2, updated_at = now() WHERE id = $1
	`, crawlID, status)

	return err
}

// UpdateCounters writes the pages_crawled / external_links_total
// snapshot for a specific crawl_id (§4.8 step 7: every 10 pages, and at
// crawl completion).
func (s *Store) UpdateCounters(ctx context.Context, crawlID int64, pagesCrawled, externalLinksTotal int) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE domains
		SET pages_crawled = $2, external_links_total = $3, updated_at = now()
		WHERE id = $1
	`, crawlID, pagesCrawled, externalLinksTotal)

	return err
}

func scanDomain(row pgx.Row) (Domain, error) {
	var d Domain

	err := row.Scan(&d.ID, &d.BaseDomain, &d.Status, &d.PagesCrawled, &d.ExternalLinksTotal, &d.MaxDepth, &d.CreatedAt, &d.UpdatedAt)

	return d, err
}
