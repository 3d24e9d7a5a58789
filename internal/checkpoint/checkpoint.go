// Package checkpoint implements save/load of per-crawl resumable state
// (§4.7): a single upserted blob keyed by base domain, serialized from
// the frontier's snapshot.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jamilsultanli/webscraper/internal/frontier"
	"github.com/jamilsultanli/webscraper/internal/store"
)

// checkpointStore is the slice of *store.Store this package depends on.
type checkpointStore interface {
	SaveCheckpoint(ctx context.Context, baseDomain string, blob []byte) error
	LoadCheckpoint(ctx context.Context, baseDomain string) ([]byte, error)
}

// State is the serialized crawl state: the frontier's pending heap, the
// discovered set, the worker pool's at-most-once crawled-URL set, and
// the completed page count seen so far.
type State struct {
	Pending      []frontier.Entry `json:"pending"`
	Discovered   []string         `json:"discovered"`
	Crawled      []string         `json:"crawled"`
	PagesCrawled int              `json:"pages_crawled"`
}

// Store wraps the persistence layer with the checkpoint-specific
// encode/decode and failure handling.
type Store struct {
	backing checkpointStore
	logger  *zerolog.Logger
}

// New creates a checkpoint Store.
func New(backing checkpointStore, logger *zerolog.Logger) *Store {
	return &Store{backing: backing, logger: logger}
}

// Save serializes and upserts state. Failures are logged and never
// fatal to the crawl (§4.7, §7).
func (s *Store) Save(ctx context.Context, baseDomain string, state State) {
	blob, err := json.Marshal(state)
	if err != nil {
		s.logError(err, "marshal checkpoint failed")
		return
	}

	if err := s.backing.SaveCheckpoint(ctx, baseDomain, blob); err != nil {
		s.logError(err, "save checkpoint failed")
	}
}

// Load returns the stored state for baseDomain, and false if none
// exists or the stored blob fails to decode.
func (s *Store) Load(ctx context.Context, baseDomain string) (State, bool) {
	blob, err := s.backing.LoadCheckpoint(ctx, baseDomain)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logError(err, "load checkpoint failed")
		}

		return State{}, false
	}

	var state State
	if err := json.Unmarshal(blob, &state); err != nil {
		s.logError(err, "decode checkpoint failed")
		return State{}, false
	}

	return state, true
}

func (s *Store) logError(err error, msg string) {
	if s.logger == nil {
		return
	}

	s.logger.Error().Err(err).Msg(msg)
}
