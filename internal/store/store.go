// Package store is the persistence layer backing the Control and
// Persistence APIs (§6): a pgxpool connection, goose migrations, and raw
// SQL queries over the four crawl tables. There is no generated query
// layer here — queries are written directly against pgx, the way the
// data volume and query shapes of a crawler (batched inserts, upserts)
// do not benefit from sqlc's one-row-in-one-row-out model.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/jamilsultanli/webscraper/migrations"
)

// Store wraps the connection pool used by every other persistence
// package (sink, checkpoint, control).
type Store struct {
	Pool *pgxpool.Pool
}

// New connects to Postgres, retrying briefly to absorb a database
// container that is still starting up.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	var (
		pool *pgxpool.Pool
	)

	for i := 0; i < 10; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &Store{Pool: pool}, nil
			}
		}

		if pool != nil {
			pool.Close()
		}

		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("connect to database after retries: %w", err)
}

// Close releases the pool.
func (s *Store) Close() {
	s.Pool.Close()
}

const migrationLockID = 8420

// Migrate runs pending goose migrations under a Postgres advisory lock so
// concurrent process starts don't race to apply the same migration twice.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return err
	}

	defer func() {
		_, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	dbSQL := stdlib.OpenDB(*s.Pool.Config().ConnConfig)
	defer dbSQL.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(dbSQL, ".")
}
