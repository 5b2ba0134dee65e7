package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default orchestrator settings.
const (
	// DefaultFetchPoolSize is the number of concurrent fetches across all hosts.
	DefaultFetchPoolSize = 16

	// DefaultExtractPoolSize is the number of concurrent link extractions.
	DefaultExtractPoolSize = 4

	// DefaultPerHostLimit is the number of concurrent fetches per host.
	DefaultPerHostLimit = 2

	// DefaultGracePeriod is how long Close waits for the pools to drain.
	DefaultGracePeriod = time.Second
)

// Orchestrator performs depth-bounded recursive crawls with bounded
// concurrency: fetches run on one pool, link extraction on another, and no
// host ever has more than the per-host limit of fetches in flight.
//
// Design decision: Fetch and extraction pools are kept separate because a
// single pool could end up with every worker blocked on slow fetches while
// the extraction that discovers new hosts starves.
//
// The host admission state and both pools belong to the orchestrator and are
// shared by concurrent Crawl calls; visited, failure and completion state
// belong to a single Crawl call.
type Orchestrator struct {
	fetcher  Fetcher
	resolver HostResolver
	logger   *slog.Logger

	fetchPoolSize   int
	extractPoolSize int
	perHostLimit    int
	gracePeriod     time.Duration

	fetchPool   *WorkerPool
	extractPool *WorkerPool
	admission   *HostAdmissionController

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFetchPoolSize sets the number of fetch workers.
func WithFetchPoolSize(n int) Option {
	return func(o *Orchestrator) {
		o.fetchPoolSize = n
	}
}

// WithExtractPoolSize sets the number of extraction workers.
func WithExtractPoolSize(n int) Option {
	return func(o *Orchestrator) {
		o.extractPoolSize = n
	}
}

// WithPerHostLimit sets the maximum number of concurrent fetches per host.
func WithPerHostLimit(n int) Option {
	return func(o *Orchestrator) {
		o.perHostLimit = n
	}
}

// WithHostResolver sets the resolver used to group fetches by host.
// Nil keeps the default URLHostResolver.
func WithHostResolver(r HostResolver) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithGracePeriod sets how long Close waits for in-flight work.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.gracePeriod = d
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New validates the options and starts the worker pools.
func New(fetcher Fetcher, opts ...Option) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	o := &Orchestrator{
		fetcher:         fetcher,
		resolver:        URLHostResolver{},
		logger:          slog.Default(),
		fetchPoolSize:   DefaultFetchPoolSize,
		extractPoolSize: DefaultExtractPoolSize,
		perHostLimit:    DefaultPerHostLimit,
		gracePeriod:     DefaultGracePeriod,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	switch {
	case o.fetchPoolSize < 1:
		return nil, ErrInvalidFetchPoolSize
	case o.extractPoolSize < 1:
		return nil, ErrInvalidExtractPoolSize
	case o.perHostLimit < 1:
		return nil, ErrInvalidPerHostLimit
	}

	var err error
	o.fetchPool, err = NewWorkerPool("fetch", o.fetchPoolSize, o.logger)
	if err != nil {
		return nil, err
	}
	o.extractPool, err = NewWorkerPool("extract", o.extractPoolSize, o.logger)
	if err != nil {
		o.fetchPool.Shutdown()
		return nil, err
	}
	o.admission = NewHostAdmissionController(o.fetchPool, o.perHostLimit)

	return o, nil
}

// crawlState is the state owned by a single Crawl call.
type crawlState struct {
	visited *VisitedSet
	errors  *ErrorCollector
	tracker *CompletionTracker
	filter  Filter
}

// Crawl visits seed and everything reachable from it within maxDepth hops
// and blocks until all of that work has settled.
//
// maxDepth = N fetches the seed and up to N-1 further hops; maxDepth <= 0
// fetches nothing. Failures are recorded in the Result rather than
// returned. The only error is ErrClosed, returned together with the partial
// Result when the orchestrator is closed before the crawl settles.
func (o *Orchestrator) Crawl(seed string, maxDepth int, filter Filter) (*Result, error) {
	if o.closed.Load() {
		return newResult(nil, nil), ErrClosed
	}

	st := &crawlState{
		visited: NewVisitedSet(),
		errors:  NewErrorCollector(),
		tracker: NewCompletionTracker(),
		filter:  filter,
	}

	start := time.Now()
	o.logger.Debug("crawl started", "seed", seed, "depth", maxDepth)

	// The sentinel unit keeps the count above zero until the seed has been
	// dispatched.
	st.tracker.Register()
	o.dispatch(st, seed, maxDepth)
	st.tracker.Arrive()

	settled := st.tracker.Await(o.done)
	result := newResult(st.visited.Snapshot(), st.errors.Snapshot())

	o.logger.Info("crawl finished",
		"seed", seed,
		"depth", maxDepth,
		"downloaded", len(result.Downloaded),
		"errors", len(result.Errors),
		"elapsed", time.Since(start),
		"complete", settled,
	)

	if !settled {
		return result, ErrClosed
	}
	return result, nil
}

// dispatch claims id and schedules its fetch.
func (o *Orchestrator) dispatch(st *crawlState, id string, depth int) {
	if depth <= 0 {
		return
	}
	allowed, err := st.allows(id)
	if err != nil {
		// A filter that panics rejects the identifier as malformed.
		if st.visited.TryClaim(id) {
			st.errors.Record(id, fmt.Errorf("%w: %w", ErrMalformedIdentifier, err))
		}
		return
	}
	if !allowed {
		return
	}
	if !st.visited.TryClaim(id) {
		return
	}

	host, err := o.resolve(id)
	if err != nil {
		st.errors.Record(id, fmt.Errorf("%w: %w", ErrMalformedIdentifier, err))
		o.logger.Debug("malformed identifier", "id", id, "error", err)
		return
	}

	st.tracker.Register()
	o.admission.Submit(host, func(ctx context.Context) {
		o.fetch(ctx, st, id, depth)
	})
}

// allows applies the crawl filter, turning a panic into an error.
func (st *crawlState) allows(id string) (ok bool, err error) {
	if st.filter == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("filter panic: %v", r)
		}
	}()
	return st.filter(id), nil
}

// resolve maps id to its host key, turning a resolver panic into an error.
func (o *Orchestrator) resolve(id string) (host string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panic: %v", r)
		}
	}()
	return o.resolver.Resolve(id)
}

// fetch is the fetch unit for id. It runs on the fetch pool, or inline with
// a cancelled context when the work was discarded.
func (o *Orchestrator) fetch(ctx context.Context, st *crawlState, id string, depth int) {
	defer st.tracker.Arrive()
	defer st.recoverUnit(id, ErrFetchFailure)

	if err := ctx.Err(); err != nil {
		st.errors.Record(id, fmt.Errorf("%w: %w", ErrFetchFailure, ErrClosed))
		return
	}

	doc, err := o.fetcher.Fetch(ctx, id)
	if err != nil {
		st.errors.Record(id, fmt.Errorf("%w: %w", ErrFetchFailure, err))
		o.logger.Debug("fetch failed", "id", id, "error", err)
		return
	}

	st.tracker.Register()
	err = o.extractPool.Submit(func(_ context.Context) {
		o.extract(st, id, doc, depth)
	})
	if err != nil {
		st.errors.Record(id, fmt.Errorf("%w: %w", ErrExtractionFailure, ErrClosed))
		st.tracker.Arrive()
	}
}

// extract is the extraction unit for a fetched id. Every discovered link is
// dispatched one hop deeper.
func (o *Orchestrator) extract(st *crawlState, id string, doc Document, depth int) {
	defer st.tracker.Arrive()
	defer st.recoverUnit(id, ErrExtractionFailure)

	links, err := doc.Links()
	if err != nil {
		// The failure is keyed by the fetched page itself, which removes it
		// from the downloaded set even though its fetch succeeded.
		st.errors.Record(id, fmt.Errorf("%w: %w", ErrExtractionFailure, err))
		o.logger.Debug("link extraction failed", "id", id, "error", err)
		return
	}

	for _, link := range links {
		o.dispatch(st, link, depth-1)
	}
}

// recoverUnit turns a panic inside a unit into a recorded failure.
// It must be deferred directly.
func (st *crawlState) recoverUnit(id string, kind error) {
	if r := recover(); r != nil {
		st.errors.Record(id, fmt.Errorf("%w: panic: %v", kind, r))
	}
}

// Close stops accepting crawls, discards fetches still queued per host and
// waits up to the grace period for both pools to finish their admitted work.
// Crawl calls still waiting return ErrClosed with partial results.
// Close is idempotent; only the first call does anything.
func (o *Orchestrator) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		discarded := o.admission.Close()
		o.fetchPool.Shutdown()
		o.extractPool.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), o.gracePeriod)
		defer cancel()

		var g errgroup.Group
		for _, pool := range []*WorkerPool{o.fetchPool, o.extractPool} {
			g.Go(func() error {
				return pool.Wait(ctx)
			})
		}
		if werr := g.Wait(); werr != nil {
			o.fetchPool.Abort()
			o.extractPool.Abort()
			err = fmt.Errorf("%w: %w", ErrDrainTimeout, werr)
			o.logger.Warn("worker pools did not drain in time",
				"grace", o.gracePeriod,
				"error", werr,
			)
		}

		close(o.done)
		o.logger.Debug("orchestrator closed", "discarded", discarded)
	})
	return err
}
