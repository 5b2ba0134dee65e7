package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
)

func TestRobotsFetcher(t *testing.T) {
	t.Parallel()

	var robotsHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		robotsHits.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n\nUser-agent: picky\nDisallow: /\n")) //nolint:errcheck
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ok := crawler.FetcherFunc(func(context.Context, string) (crawler.Document, error) {
		return &Page{}, nil
	})

	t.Run("allows and disallows by path", func(t *testing.T) {
		t.Parallel()

		f := NewRobotsFetcher(ok, server.Client(), "hostcrawl", nil)

		if _, err := f.Fetch(context.Background(), server.URL+"/public"); err != nil {
			t.Errorf("expected /public to be allowed, got %v", err)
		}
		_, err := f.Fetch(context.Background(), server.URL+"/private/x")
		if !errors.Is(err, ErrDisallowedByRobots) {
			t.Errorf("expected ErrDisallowedByRobots, got %v", err)
		}
	})

	t.Run("matches the user agent group", func(t *testing.T) {
		t.Parallel()

		f := NewRobotsFetcher(ok, server.Client(), "picky", nil)
		_, err := f.Fetch(context.Background(), server.URL+"/public")
		if !errors.Is(err, ErrDisallowedByRobots) {
			t.Errorf("expected ErrDisallowedByRobots, got %v", err)
		}
	})

	t.Run("caches rules per host", func(t *testing.T) {
		t.Parallel()

		cached := httptest.NewServer(mux)
		t.Cleanup(cached.Close)

		f := NewRobotsFetcher(ok, cached.Client(), "hostcrawl", nil)
		before := robotsHits.Load()
		for range 3 {
			_, _ = f.Fetch(context.Background(), cached.URL+"/page") //nolint:errcheck
		}
		// Other subtests share the counter, so only check the lower bound
		// this fetcher could have added.
		if robotsHits.Load()-before < 1 {
			t.Error("expected robots.txt to be requested")
		}
		if len(f.cache) != 1 {
			t.Errorf("expected 1 cached host, got %d", len(f.cache))
		}
	})

	t.Run("concurrent misses share one robots.txt request", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				hits.Add(1)
				time.Sleep(50 * time.Millisecond)
				_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n")) //nolint:errcheck
			}
		}))
		t.Cleanup(slow.Close)

		f := NewRobotsFetcher(ok, slow.Client(), "hostcrawl", nil)

		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				if _, err := f.Fetch(context.Background(), slow.URL+"/page"); err != nil {
					t.Errorf("Fetch() error = %v", err)
				}
			})
		}
		wg.Wait()

		if n := hits.Load(); n != 1 {
			t.Errorf("robots.txt requested %d times, want 1", n)
		}
	})

	t.Run("fails open when robots.txt is unreachable", func(t *testing.T) {
		t.Parallel()

		f := NewRobotsFetcher(ok, nil, "hostcrawl", nil)
		if _, err := f.Fetch(context.Background(), "http://127.0.0.1:1/x"); err != nil {
			t.Errorf("expected fail-open, got %v", err)
		}
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()

		empty := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(empty.Close)

		f := NewRobotsFetcher(ok, empty.Client(), "hostcrawl", nil)
		if _, err := f.Fetch(context.Background(), empty.URL+"/anything"); err != nil {
			t.Errorf("expected allow, got %v", err)
		}
	})
}
