package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jamilsultanli/webscraper/internal/checkpoint"
	"github.com/jamilsultanli/webscraper/internal/frontier"
	"github.com/jamilsultanli/webscraper/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	inserted []store.LinkRow
	counters []int
}

func (f *fakeStore) InsertLinks(_ context.Context, rows []store.LinkRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, rows...)

	return nil
}

func (f *fakeStore) UpsertDomainAggregates(_ context.Context, _ []store.DomainAggregate) error {
	return nil
}

func (f *fakeStore) UpdateCounters(_ context.Context, _ int64, pagesCrawled, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, pagesCrawled)

	return nil
}

type fakeCheckpointBacking struct{}

func (fakeCheckpointBacking) SaveCheckpoint(context.Context, string, []byte) error { return nil }
func (fakeCheckpointBacking) LoadCheckpoint(context.Context, string) ([]byte, error) {
	return nil, store.ErrNotFound
}

func TestPoolCrawlsSeedPageAndFollowsInScopeLinks(t *testing.T) {
	var srvURL string

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<a href="/about">about</a>
			<a href="https://external.test/page">ext</a>
		</body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>no links here</body></html>`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}

	host := parsed.Hostname()

	f := frontier.New(100)
	f.Admit(frontier.Entry{URL: srvURL + "/", Priority: 10, Type: "page"})

	fs := &fakeStore{}
	cp := checkpoint.New(fakeCheckpointBacking{}, nil)

	pool := &Pool{
		Size:              2,
		CrawlDelay:        time.Millisecond,
		MaxDepth:          5,
		CheckpointEvery:   0,
		BaseDomain:        host,
		IncludeSubdomains: true,
		FollowPagination:  true,
		IncludeLangVar:    true,
		Frontier:          f,
		UserAgent:         "test-agent",
		CrawlID:           1,
		Store:             fs,
		Checkpoint:        cp,
		Counters:          &Counters{},
		Crawled:           NewCrawled(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool.Run(ctx)

	if pool.Counters.PagesCrawled != 2 {
		t.Fatalf("PagesCrawled = %d, want 2", pool.Counters.PagesCrawled)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if len(fs.inserted) != 1 {
		t.Fatalf("inserted external links = %d, want 1", len(fs.inserted))
	}

	if fs.inserted[0].TargetDomain != "external.test" {
		t.Errorf("TargetDomain = %q, want external.test", fs.inserted[0].TargetDomain)
	}
}
