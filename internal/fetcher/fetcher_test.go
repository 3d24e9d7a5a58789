package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchFollowsRedirectAndReturnsFinalURL(t *testing.T) {
	var homeURL string

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, homeURL, http.StatusMovedPermanently)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hi</html>"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	homeURL = srv.URL + "/home"

	f := New("test-agent", 0)

	result, err := f.Fetch(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if result.FinalURL != homeURL {
		t.Errorf("FinalURL = %q, want %q", result.FinalURL, homeURL)
	}

	if string(result.Body) != "<html>hi</html>" {
		t.Errorf("Body = %q", result.Body)
	}
}

func TestFetchNonHTMLReturnsEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"a":1}`))
	}))
	defer srv.Close()

	f := New("test-agent", 0)

	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(result.Body) != 0 {
		t.Errorf("Body = %q, want empty", result.Body)
	}
}

func TestFetch5xxReturnsClassifiedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New("test-agent", 0)

	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}

	var fetchErr *Error
	if !asError(err, &fetchErr) {
		t.Fatalf("expected *fetcher.Error, got %T", err)
	}

	if fetchErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", fetchErr.StatusCode)
	}
}

func TestFetchRespectsCrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := New("test-agent", 100*time.Millisecond)

	start := time.Now()

	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("second fetch fired after %v, want at least ~100ms of pacing", elapsed)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}

	*target = e

	return true
}
