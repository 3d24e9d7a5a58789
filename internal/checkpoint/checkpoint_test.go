package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamilsultanli/webscraper/internal/store"
)

type fakeBacking struct {
	blobs map[string][]byte
}

func newFakeBacking() *fakeBacking {
	return &fakeBacking{blobs: make(map[string][]byte)}
}

func (f *fakeBacking) SaveCheckpoint(_ context.Context, baseDomain string, blob []byte) error {
	f.blobs[baseDomain] = blob
	return nil
}

func (f *fakeBacking) LoadCheckpoint(_ context.Context, baseDomain string) ([]byte, error) {
	blob, ok := f.blobs[baseDomain]
	if !ok {
		return nil, store.ErrNotFound
	}

	return blob, nil
}

func TestSaveLoadRoundTrip(t *testing.T) {
	backing := newFakeBacking()
	s := New(backing, nil)

	state := State{
		Discovered:   []string{"https://a.test/", "https://a.test/b"},
		PagesCrawled: 7,
	}

	s.Save(context.Background(), "a.test", state)

	loaded, ok := s.Load(context.Background(), "a.test")
	require.True(t, ok, "expected checkpoint to load")
	require.Equal(t, 7, loaded.PagesCrawled)
	require.Len(t, loaded.Discovered, 2)
}

func TestLoadMissingReturnsFalse(t *testing.T) {
	backing := newFakeBacking()
	s := New(backing, nil)

	_, ok := s.Load(context.Background(), "missing.test")
	require.False(t, ok, "expected no checkpoint for missing domain")
}
