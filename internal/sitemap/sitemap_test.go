package sitemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverFindsSitemapAndRecursesIndex(t *testing.T) {
	var srvURL string

	mux := http.NewServeMux()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex>
  <sitemap><loc>` + srvURL + `/sub-sitemap.xml</loc></sitemap>
</sitemapindex>`))
	})

	mux.HandleFunc("/sub-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<urlset>
  <url><loc>` + srvURL + `/page-a</loc></url>
  <url><loc>` + srvURL + `/page-b</loc></url>
</urlset>`))
	})

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})

	mux.HandleFunc("/sitemap_index.xml", http.NotFound)
	mux.HandleFunc("/sitemaps.xml", http.NotFound)
	mux.HandleFunc("/sitemap/sitemap.xml", http.NotFound)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	// the handlers read srvURL per request, so the sitemap bodies carry the
	// server's real base URL once it is known
	srvURL = srv.URL

	d := New("test-agent", nil)

	entries := d.Discover(context.Background(), srv.URL, 50)

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}

	for _, e := range entries {
		if e.Priority != PrioritySitemap || e.Type != EntryTypeSitemap {
			t.Errorf("entry %+v has wrong priority/type", e)
		}
	}
}

func TestDiscoverRespectsMaxEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap_index.xml", http.NotFound)
	mux.HandleFunc("/sitemaps.xml", http.NotFound)
	mux.HandleFunc("/sitemap/sitemap.xml", http.NotFound)
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset>
  <url><loc>http://a.test/1</loc></url>
  <url><loc>http://a.test/2</loc></url>
  <url><loc>http://a.test/3</loc></url>
</urlset>`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := New("test-agent", nil)

	entries := d.Discover(context.Background(), srv.URL, 2)

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (capped)", len(entries))
	}
}

func TestDiscoverAdmitsFeedItemsAtFeedPriority(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", http.NotFound)
	mux.HandleFunc("/sitemap_index.xml", http.NotFound)
	mux.HandleFunc("/sitemaps.xml", http.NotFound)
	mux.HandleFunc("/sitemap/sitemap.xml", http.NotFound)
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/rss.xml", http.NotFound)
	mux.HandleFunc("/atom.xml", http.NotFound)
	mux.HandleFunc("/feed.xml", http.NotFound)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>test feed</title>
  <item><title>one</title><link>http://a.test/article-1</link></item>
  <item><title>two</title><link>http://a.test/article-2</link></item>
</channel></rss>`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := New("test-agent", nil)

	entries := d.Discover(context.Background(), srv.URL, 50)

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}

	for _, e := range entries {
		if e.Priority != PriorityFeed || e.Type != EntryTypeFeed {
			t.Errorf("entry %+v has wrong priority/type", e)
		}
	}
}

func TestExtractLocsToleratesMalformedXML(t *testing.T) {
	body := []byte(`<urlset><url><loc>http://a.test/ok</loc></url><not-closed>`)

	locs, err := extractLocs(body)
	if err != nil {
		t.Fatalf("extractLocs returned error: %v", err)
	}

	if len(locs) != 1 || locs[0] != "http://a.test/ok" {
		t.Fatalf("locs = %+v, want [http://a.test/ok]", locs)
	}
}
