package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// etagServer serves body with a fixed ETag and honors If-None-Match.
func etagServer(t *testing.T, body string, hits *atomic.Int32, failing *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_CachesWithETag(t *testing.T) {
	var hits atomic.Int32
	var failing atomic.Bool
	srv := etagServer(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", &hits, &failing)

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "district", URL: srv.URL + "/closures.ics"}

	first, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || len(first.Body) == 0 {
		t.Errorf("first fetch = %+v", first)
	}

	second, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || string(second.Body) != string(first.Body) {
		t.Errorf("second fetch should come from cache: %+v", second)
	}

	failing.Store(true)
	third, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("third fetch should fall back to cache: %v", err)
	}
	if !third.FromCache {
		t.Error("third fetch should be served from cache")
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestFetcher_ErrorWithoutCache(t *testing.T) {
	var hits atomic.Int32
	var failing atomic.Bool
	failing.Store(true)
	srv := etagServer(t, "", &hits, &failing)

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "down", URL: srv.URL},
		{ID: "blank"},
	})
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
	if len(errs) != 2 {
		t.Errorf("errs = %v, want 2", errs)
	}
}
