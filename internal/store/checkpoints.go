package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveCheckpoint upserts the serialized state blob for baseDomain (§4.7).
// Each save writes a fresh save_id into the row, which is overwritten in
// place; the id is neither returned nor logged.
func (s *Store) SaveCheckpoint(ctx context.Context, baseDomain string, blob []byte) error {
	saveID := uuid.New()

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO crawl_states (base_domain, save_id, state_blob, saved_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (base_domain) DO UPDATE
		SET save_id = EXCLUDED.save_id, state_blob = EXCLUDED.state_blob, saved_at = EXCLUDED.saved_at
	`, baseDomain, saveID, blob)

	return err
}

// LoadCheckpoint returns the stored blob for baseDomain, or ErrNotFound
// if no checkpoint has been saved.
func (s *Store) LoadCheckpoint(ctx context.Context, baseDomain string) ([]byte, error) {
	var blob []byte

	err := s.Pool.QueryRow(ctx, `
		SELECT state_blob FROM crawl_states WHERE base_domain = $1
	`, baseDomain).Scan(&blob)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	return blob, err
}
