package crawler

import "errors"

// Failure classes recorded in a Result.
// Every error stored in Result.Errors wraps exactly one of the first three
// sentinels, so callers can classify failures with errors.Is or KindOf.
var (
	// ErrMalformedIdentifier is recorded when the host resolver rejects an
	// identifier, or when the resolver or filter panics on it. No fetch work
	// is scheduled for it.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	// ErrFetchFailure is recorded when the Fetcher fails for an identifier.
	// The identifier's links are never extracted.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrExtractionFailure is recorded, keyed by the fetched page itself,
	// when its Document fails to produce links.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrClosed is returned by Crawl when the orchestrator is closed, and is
	// wrapped into the failures of work that was discarded by Close.
	ErrClosed = errors.New("crawler: orchestrator closed")

	// ErrDrainTimeout is returned by Close when the worker pools did not
	// finish within the grace period.
	ErrDrainTimeout = errors.New("crawler: worker pools did not drain within grace period")

	// ErrPoolClosed is returned by WorkerPool.Submit after Shutdown.
	ErrPoolClosed = errors.New("crawler: worker pool is shut down")
)

// Construction errors returned by New.
var (
	// ErrNilFetcher is returned when New is called without a Fetcher.
	ErrNilFetcher = errors.New("crawler: fetcher must not be nil")

	// ErrInvalidFetchPoolSize is returned when the fetch pool size is below 1.
	ErrInvalidFetchPoolSize = errors.New("crawler: fetch pool size must be at least 1")

	// ErrInvalidExtractPoolSize is returned when the extract pool size is below 1.
	ErrInvalidExtractPoolSize = errors.New("crawler: extract pool size must be at least 1")

	// ErrInvalidPerHostLimit is returned when the per-host limit is below 1.
	ErrInvalidPerHostLimit = errors.New("crawler: per-host limit must be at least 1")
)

// Kind classifies a recorded failure.
type Kind string

// Failure kinds, matching the sentinels above.
const (
	KindMalformed  Kind = "malformed"
	KindFetch      Kind = "fetch"
	KindExtraction Kind = "extraction"
	KindUnknown    Kind = "unknown"
)

// Kinds lists the known failure kinds in reporting order.
func Kinds() []Kind {
	return []Kind{KindMalformed, KindFetch, KindExtraction}
}

// KindOf returns the failure kind of err.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrMalformedIdentifier):
		return KindMalformed
	case errors.Is(err, ErrFetchFailure):
		return KindFetch
	case errors.Is(err, ErrExtractionFailure):
		return KindExtraction
	default:
		return KindUnknown
	}
}
