package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide at least one URL to crawl")

	// ErrInvalidSeed is returned, wrapped with the offending value, when a
	// seed is not an absolute http or https URL.
	ErrInvalidSeed = errors.New("invalid seed: must be an http or https URL")

	// ErrInvalidDepth is returned when the depth is below 1.
	// Depth 0 would not even fetch the seed.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidFetchPoolSize is returned when fewer than one fetch worker is configured.
	ErrInvalidFetchPoolSize = errors.New("invalid number of fetchers: must be at least 1")

	// ErrInvalidExtractPoolSize is returned when fewer than one extract worker is configured.
	ErrInvalidExtractPoolSize = errors.New("invalid number of extractors: must be at least 1")

	// ErrInvalidPerHostLimit is returned when the per-host limit is below 1.
	ErrInvalidPerHostLimit = errors.New("invalid per-host limit: must be at least 1")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidGracePeriod is returned when the shutdown grace period is negative.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be non-negative")

	// ErrInvalidBatchSize is returned when the number of concurrent seeds is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRateLimit is returned when the per-host rate is negative.
	// Zero disables rate limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Zero selects the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxLinks is returned when the per-page link cap is negative.
	ErrInvalidMaxLinks = errors.New("invalid max links: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when an HTTP proxy and Tor are both requested.
	ErrConflictingProxy = errors.New("conflicting proxies: --proxy cannot be combined with Tor")
)
