package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamilsultanli/webscraper/internal/checkpoint"
	"github.com/jamilsultanli/webscraper/internal/config"
	"github.com/jamilsultanli/webscraper/internal/frontier"
	"github.com/jamilsultanli/webscraper/internal/store"
	"github.com/jamilsultanli/webscraper/internal/urlscope"
)

func TestStartRejectsNonHTTPScheme(t *testing.T) {
	c := New(&config.Config{}, nil, nil)

	_, err := c.Start(context.Background(), "ftp://example.test/", config.Options{})
	if err == nil {
		t.Fatal("expected error for non-http scheme")
	}

	var ctrlErr *Error
	if !asControlError(err, &ctrlErr) {
		t.Fatalf("expected *control.Error, got %T", err)
	}
}

func TestStartRejectsMalformedURL(t *testing.T) {
	c := New(&config.Config{}, nil, nil)

	_, err := c.Start(context.Background(), "://bad", config.Options{})
	if err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestFilterDofollowDropsNofollowRows(t *testing.T) {
	rows := []store.LinkRow{
		{TargetURL: "https://a.test/1", IsNofollow: false},
		{TargetURL: "https://a.test/2", IsNofollow: true},
		{TargetURL: "https://a.test/3", IsNofollow: false},
	}

	out := filterDofollow(rows)

	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}

	for _, r := range out {
		if r.IsNofollow {
			t.Errorf("nofollow row leaked into dofollow filter: %+v", r)
		}
	}
}

type fakeCheckpointBacking struct {
	blob []byte
	ok   bool
}

func (f fakeCheckpointBacking) SaveCheckpoint(context.Context, string, []byte) error { return nil }

func (f fakeCheckpointBacking) LoadCheckpoint(context.Context, string) ([]byte, error) {
	if !f.ok {
		return nil, store.ErrNotFound
	}

	return f.blob, nil
}

func TestSeedFreshWhenNoResume(t *testing.T) {
	c := &Controller{}

	cp := checkpoint.New(fakeCheckpointBacking{}, nil)

	resolved := config.Resolved{MaxPages: 10, Resume: false, FollowSitemaps: false}

	f, pages, crawled := c.seed(context.Background(), cp, "example.test", "https://example.test/", resolved)

	if pages != 0 {
		t.Fatalf("pages = %d, want 0 for a fresh seed", pages)
	}

	if len(crawled) != 0 {
		t.Fatalf("crawled = %v, want empty for a fresh seed", crawled)
	}

	entry, ok := f.Pop()
	if !ok || entry.URL != "https://example.test/" {
		t.Fatalf("expected start url admitted at priority 10, got %+v", entry)
	}
}

func TestSeedResumesFromNonEmptyCheckpoint(t *testing.T) {
	c := &Controller{}

	state := checkpoint.State{
		Pending:      []frontier.Entry{{URL: "https://example.test/resume-me", Priority: 5}},
		Discovered:   []string{"https://example.test/resume-me", "https://example.test/already-done"},
		Crawled:      []string{"https://example.test/already-done"},
		PagesCrawled: 3,
	}

	blob, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}

	cp := checkpoint.New(fakeCheckpointBacking{blob: blob, ok: true}, nil)

	resolved := config.Resolved{MaxPages: 10, Resume: true, FollowSitemaps: false}

	f, pages, crawled := c.seed(context.Background(), cp, "example.test", "https://example.test/", resolved)

	if pages != 3 {
		t.Fatalf("pages = %d, want 3 (resumed)", pages)
	}

	entry, ok := f.Pop()
	if !ok || entry.URL != "https://example.test/resume-me" {
		t.Fatalf("expected resumed pending entry, got %+v", entry)
	}

	if len(crawled) != 1 || crawled[0] != "https://example.test/already-done" {
		t.Fatalf("crawled = %v, want [https://example.test/already-done]", crawled)
	}
}

func TestSeedFiltersSitemapEntriesOutOfScope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(`<?xml version="1.0"?>
			<urlset>
				<url><loc>https://cdn.other-test/asset</loc></url>
			</urlset>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for _, p := range []string{"/sitemap_index.xml", "/sitemaps.xml", "/sitemap/sitemap.xml", "/feed", "/rss.xml", "/atom.xml", "/feed.xml"} {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Controller{}
	cp := checkpoint.New(fakeCheckpointBacking{}, nil)

	baseDomain, err := urlscope.BaseDomain(srv.URL)
	if err != nil {
		t.Fatalf("derive base domain: %v", err)
	}

	resolved := config.Resolved{MaxPages: 10, FollowSitemaps: true, IncludeSubdomains: true}

	f, _, _ := c.seed(context.Background(), cp, baseDomain, srv.URL+"/", resolved)

	for {
		entry, ok := f.Pop()
		if !ok {
			break
		}

		if entry.URL == "https://cdn.other-test/asset" {
			t.Fatalf("off-domain sitemap entry was admitted to the frontier: %+v", entry)
		}
	}
}

func asControlError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}

	*target = e

	return true
}
