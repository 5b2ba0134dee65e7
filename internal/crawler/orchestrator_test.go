package crawler

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// page is a Document backed by a fixed link list.
type page struct {
	links []string
	err   error
}

func (p page) Links() ([]string, error) {
	return p.links, p.err
}

// graphFetcher serves an in-memory link graph.
type graphFetcher struct {
	graph      map[string][]string
	fetchErr   map[string]error
	extractErr map[string]error
	delay      time.Duration

	mu      sync.Mutex
	fetched map[string]int

	current atomic.Int32
	peak    atomic.Int32
}

func newGraphFetcher(graph map[string][]string) *graphFetcher {
	return &graphFetcher{
		graph:      graph,
		fetchErr:   map[string]error{},
		extractErr: map[string]error{},
		fetched:    map[string]int{},
	}
}

func (g *graphFetcher) Fetch(ctx context.Context, id string) (Document, error) {
	n := g.current.Add(1)
	defer g.current.Add(-1)
	for {
		old := g.peak.Load()
		if n <= old || g.peak.CompareAndSwap(old, n) {
			break
		}
	}

	g.mu.Lock()
	g.fetched[id]++
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := g.fetchErr[id]; err != nil {
		return nil, err
	}
	return page{links: g.graph[id], err: g.extractErr[id]}, nil
}

func (g *graphFetcher) fetchCount(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetched[id]
}

func newTestOrchestrator(t *testing.T, f Fetcher, opts ...Option) *Orchestrator {
	t.Helper()

	o, err := New(f, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func assertDownloaded(t *testing.T, r *Result, want ...string) {
	t.Helper()

	slices.Sort(want)
	if !slices.Equal(r.Downloaded, want) {
		t.Errorf("Downloaded = %v, want %v", r.Downloaded, want)
	}
}

func assertDisjoint(t *testing.T, r *Result) {
	t.Helper()

	for _, id := range r.Downloaded {
		if _, ok := r.Errors[id]; ok {
			t.Errorf("%s is both downloaded and failed", id)
		}
	}
}

const (
	seed = "http://example.com/"
	b    = "http://example.com/b"
	c    = "http://example.com/c"
	d    = "http://example.com/d"
)

func TestNew(t *testing.T) {
	t.Parallel()

	f := newGraphFetcher(nil)

	tests := []struct {
		name string
		f    Fetcher
		opts []Option
		want error
	}{
		{name: "nil fetcher", f: nil, want: ErrNilFetcher},
		{name: "zero fetch pool", f: f, opts: []Option{WithFetchPoolSize(0)}, want: ErrInvalidFetchPoolSize},
		{name: "zero extract pool", f: f, opts: []Option{WithExtractPoolSize(0)}, want: ErrInvalidExtractPoolSize},
		{name: "negative per-host limit", f: f, opts: []Option{WithPerHostLimit(-1)}, want: ErrInvalidPerHostLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.f, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		o := newTestOrchestrator(t, f,
			WithFetchPoolSize(3),
			WithExtractPoolSize(2),
			WithPerHostLimit(1),
			WithGracePeriod(5*time.Second),
			WithHostResolver(nil),
			WithLogger(nil),
		)
		if o.fetchPoolSize != 3 || o.extractPoolSize != 2 || o.perHostLimit != 1 {
			t.Errorf("unexpected sizes: %d %d %d", o.fetchPoolSize, o.extractPoolSize, o.perHostLimit)
		}
		if o.gracePeriod != 5*time.Second {
			t.Errorf("unexpected grace period %v", o.gracePeriod)
		}
		if o.resolver == nil || o.logger == nil {
			t.Error("expected nil resolver and logger to keep defaults")
		}
	})
}

func TestOrchestratorCrawlDepth(t *testing.T) {
	t.Parallel()

	graph := map[string][]string{seed: {b, c}}

	tests := []struct {
		name  string
		depth int
		want  []string
	}{
		{name: "zero depth fetches nothing", depth: 0, want: []string{}},
		{name: "negative depth fetches nothing", depth: -3, want: []string{}},
		{name: "depth one fetches only the seed", depth: 1, want: []string{seed}},
		{name: "depth two follows one hop", depth: 2, want: []string{seed, b, c}},
		{name: "extra depth changes nothing", depth: 5, want: []string{seed, b, c}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newGraphFetcher(graph)
			o := newTestOrchestrator(t, f)

			r, err := o.Crawl(seed, tt.depth, nil)
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}
			assertDownloaded(t, r, tt.want...)
			if len(r.Errors) != 0 {
				t.Errorf("unexpected errors: %v", r.Errors)
			}
			if tt.depth == 1 && f.fetchCount(b) != 0 {
				t.Error("links beyond the depth budget were fetched")
			}
		})
	}
}

func TestOrchestratorCrawl(t *testing.T) {
	t.Parallel()

	t.Run("single node without links", func(t *testing.T) {
		t.Parallel()

		o := newTestOrchestrator(t, newGraphFetcher(nil))

		r, err := o.Crawl(seed, 1, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r, seed)
	})

	t.Run("diamond visits the shared node once", func(t *testing.T) {
		t.Parallel()

		for range 20 {
			f := newGraphFetcher(map[string][]string{
				seed: {b, c},
				b:    {d},
				c:    {d},
			})
			o := newTestOrchestrator(t, f, WithFetchPoolSize(4), WithPerHostLimit(4))

			r, err := o.Crawl(seed, 10, nil)
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}
			assertDownloaded(t, r, seed, b, c, d)
			if n := f.fetchCount(d); n != 1 {
				t.Fatalf("expected d to be fetched once, got %d", n)
			}
		}
	})

	t.Run("failed seed fetch stops the crawl", func(t *testing.T) {
		t.Parallel()

		f := newGraphFetcher(map[string][]string{seed: {b, c}})
		f.fetchErr[seed] = errors.New("connection refused")
		o := newTestOrchestrator(t, f)

		r, err := o.Crawl(seed, 3, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r)
		if len(r.Errors) != 1 || !errors.Is(r.Errors[seed], ErrFetchFailure) {
			t.Errorf("expected a single fetch failure for the seed, got %v", r.Errors)
		}
		if f.fetchCount(b) != 0 || f.fetchCount(c) != 0 {
			t.Error("links of a failed fetch were dispatched")
		}
	})

	t.Run("extraction failure is keyed by the fetched page", func(t *testing.T) {
		t.Parallel()

		f := newGraphFetcher(map[string][]string{seed: {b}, b: {c}})
		f.extractErr[b] = errors.New("broken markup")
		o := newTestOrchestrator(t, f)

		r, err := o.Crawl(seed, 5, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r, seed)
		if KindOf(r.Errors[b]) != KindExtraction {
			t.Errorf("expected extraction failure for b, got %v", r.Errors[b])
		}
		if f.fetchCount(b) != 1 {
			t.Error("expected b to have been fetched")
		}
		if f.fetchCount(c) != 0 {
			t.Error("links of a failed extraction were dispatched")
		}
	})

	t.Run("malformed identifiers are recorded without fetching", func(t *testing.T) {
		t.Parallel()

		f := newGraphFetcher(map[string][]string{seed: {"not a url", b}})
		o := newTestOrchestrator(t, f)

		r, err := o.Crawl(seed, 2, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r, seed, b)
		if KindOf(r.Errors["not a url"]) != KindMalformed {
			t.Errorf("expected malformed failure, got %v", r.Errors["not a url"])
		}
		if f.fetchCount("not a url") != 0 {
			t.Error("malformed identifier was fetched")
		}
		assertDisjoint(t, r)
	})

	t.Run("filter rejects identifiers before they are claimed", func(t *testing.T) {
		t.Parallel()

		f := newGraphFetcher(map[string][]string{seed: {b, c}})
		o := newTestOrchestrator(t, f)

		r, err := o.Crawl(seed, 2, func(id string) bool { return id != c })
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r, seed, b)
	})

	t.Run("panicking fetcher is recorded as a fetch failure", func(t *testing.T) {
		t.Parallel()

		f := FetcherFunc(func(context.Context, string) (Document, error) {
			panic("boom")
		})
		o := newTestOrchestrator(t, f)

		r, err := o.Crawl(seed, 1, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if KindOf(r.Errors[seed]) != KindFetch {
			t.Errorf("expected fetch failure, got %v", r.Errors[seed])
		}
	})

	t.Run("panicking resolver marks the link malformed", func(t *testing.T) {
		t.Parallel()

		const boom = "http://boom/"
		f := newGraphFetcher(map[string][]string{seed: {boom, b}})
		resolver := HostResolverFunc(func(id string) (string, error) {
			if id == boom {
				panic("resolver exploded")
			}
			return URLHostResolver{}.Resolve(id)
		})
		o := newTestOrchestrator(t, f, WithHostResolver(resolver))

		r, err := o.Crawl(seed, 2, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r, seed, b)
		if KindOf(r.Errors[boom]) != KindMalformed {
			t.Errorf("expected malformed failure, got %v", r.Errors[boom])
		}
		if _, ok := r.Errors[seed]; ok {
			t.Errorf("parent was charged with the resolver panic: %v", r.Errors[seed])
		}
		if f.fetchCount(boom) != 0 {
			t.Error("identifier with a panicking resolver was fetched")
		}
		assertDisjoint(t, r)
	})

	t.Run("panicking resolver on the seed is recorded", func(t *testing.T) {
		t.Parallel()

		resolver := HostResolverFunc(func(string) (string, error) {
			panic("resolver exploded")
		})
		o := newTestOrchestrator(t, newGraphFetcher(nil), WithHostResolver(resolver))

		r, err := o.Crawl(seed, 1, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r)
		if KindOf(r.Errors[seed]) != KindMalformed {
			t.Errorf("expected malformed failure, got %v", r.Errors[seed])
		}
	})

	t.Run("panicking filter marks the link malformed", func(t *testing.T) {
		t.Parallel()

		f := newGraphFetcher(map[string][]string{seed: {b, c}})
		o := newTestOrchestrator(t, f)

		r, err := o.Crawl(seed, 2, func(id string) bool {
			if id == c {
				panic("filter exploded")
			}
			return true
		})
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r, seed, b)
		if KindOf(r.Errors[c]) != KindMalformed {
			t.Errorf("expected malformed failure, got %v", r.Errors[c])
		}
		if f.fetchCount(c) != 0 {
			t.Error("identifier with a panicking filter was fetched")
		}
	})

	t.Run("per-host limit of one serializes siblings", func(t *testing.T) {
		t.Parallel()

		var siblings []string
		for _, s := range []string{"1", "2", "3", "4", "5"} {
			siblings = append(siblings, "http://example.com/"+s)
		}
		f := newGraphFetcher(map[string][]string{seed: siblings})
		f.delay = 5 * time.Millisecond
		o := newTestOrchestrator(t, f, WithFetchPoolSize(8), WithPerHostLimit(1))

		r, err := o.Crawl(seed, 2, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertDownloaded(t, r, append([]string{seed}, siblings...)...)
		if f.peak.Load() != 1 {
			t.Errorf("expected at most 1 concurrent fetch per host, got %d", f.peak.Load())
		}
	})

	t.Run("repeated crawls yield identical results", func(t *testing.T) {
		t.Parallel()

		f := newGraphFetcher(map[string][]string{
			seed: {b, c, "::bad"},
			b:    {d, seed},
			c:    {d},
		})
		f.fetchErr[c] = errors.New("timeout")
		o := newTestOrchestrator(t, f)

		first, err := o.Crawl(seed, 4, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		second, err := o.Crawl(seed, 4, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}

		if !slices.Equal(first.Downloaded, second.Downloaded) {
			t.Errorf("downloaded differs: %v vs %v", first.Downloaded, second.Downloaded)
		}
		if !slices.Equal(slices.Sorted(maps.Keys(first.Errors)), slices.Sorted(maps.Keys(second.Errors))) {
			t.Errorf("errors differ: %v vs %v", first.Errors, second.Errors)
		}
		assertDisjoint(t, first)
	})

	t.Run("concurrent crawls share the orchestrator", func(t *testing.T) {
		t.Parallel()

		f := newGraphFetcher(map[string][]string{seed: {b, c}, b: {d}})
		o := newTestOrchestrator(t, f, WithPerHostLimit(1))

		var wg sync.WaitGroup
		results := make([]*Result, 4)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := o.Crawl(seed, 3, nil)
				if err != nil {
					t.Errorf("Crawl() error = %v", err)
					return
				}
				results[i] = r
			}()
		}
		wg.Wait()

		for _, r := range results {
			if r != nil {
				assertDownloaded(t, r, seed, b, c, d)
			}
		}
	})
}

func TestOrchestratorClose(t *testing.T) {
	t.Parallel()

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()

		o, err := New(newGraphFetcher(nil))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := o.Close(); err != nil {
			t.Errorf("first Close() error = %v", err)
		}
		if err := o.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	t.Run("crawl after close fails", func(t *testing.T) {
		t.Parallel()

		o, _ := New(newGraphFetcher(nil))
		_ = o.Close()

		r, err := o.Crawl(seed, 1, nil)
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Crawl() error = %v, want ErrClosed", err)
		}
		if r == nil || len(r.Downloaded) != 0 {
			t.Errorf("expected empty result, got %+v", r)
		}
	})

	t.Run("close interrupts a running crawl", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		started := make(chan struct{}, 16)
		f := FetcherFunc(func(ctx context.Context, id string) (Document, error) {
			started <- struct{}{}
			if id == seed {
				return page{links: []string{b, c, d}}, nil
			}
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return page{}, nil
		})
		o, _ := New(f, WithPerHostLimit(1), WithGracePeriod(time.Second))

		type outcome struct {
			r   *Result
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			r, err := o.Crawl(seed, 2, nil)
			done <- outcome{r, err}
		}()

		// Seed plus the first sibling holding the only host slot.
		<-started
		<-started

		closed := make(chan error, 1)
		go func() { closed <- o.Close() }()
		time.Sleep(10 * time.Millisecond)
		close(release)

		if err := <-closed; err != nil {
			t.Errorf("Close() error = %v", err)
		}

		got := <-done
		if got.r == nil {
			t.Fatal("expected a partial result")
		}
		if !got.r.Interrupted() {
			t.Errorf("expected discarded fetches to be recorded, got %v", got.r.Errors)
		}
		if got.err != nil && !errors.Is(got.err, ErrClosed) {
			t.Errorf("unexpected Crawl() error = %v", got.err)
		}
		assertDisjoint(t, got.r)
	})

	t.Run("drain timeout is reported", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		f := FetcherFunc(func(ctx context.Context, _ string) (Document, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		o, _ := New(f, WithGracePeriod(10*time.Millisecond))

		done := make(chan error, 1)
		go func() {
			_, err := o.Crawl(seed, 1, nil)
			done <- err
		}()
		<-started

		if err := o.Close(); !errors.Is(err, ErrDrainTimeout) {
			t.Errorf("Close() error = %v, want ErrDrainTimeout", err)
		}
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, ErrClosed) {
				t.Errorf("unexpected Crawl() error = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Crawl did not return after Close")
		}
	})
}

func TestResult(t *testing.T) {
	t.Parallel()

	r := newResult(
		[]string{"a", "b", "c", "d"},
		map[string]error{
			"b": ErrFetchFailure,
			"c": ErrExtractionFailure,
			"d": errors.New("other"),
		},
	)

	if !slices.Equal(r.Downloaded, []string{"a"}) {
		t.Errorf("Downloaded = %v", r.Downloaded)
	}
	counts := r.CountByKind()
	if counts[KindFetch] != 1 || counts[KindExtraction] != 1 || counts[KindUnknown] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
	if r.Interrupted() {
		t.Error("expected no interruption")
	}
}
