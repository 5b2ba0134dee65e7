package model

import (
	"errors"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
)

// CrawlReport is the record of one crawl: what was downloaded, what failed
// and how. It is printed by the report package and stored by the database
// package.
//
// Design decision: The report is built from crawler.Result once the crawl
// has settled instead of being filled in while it runs, so it never observes
// partial state and the crawler package stays free of presentation types.
type CrawlReport struct {
	// ID is the database row id. Zero until the report is saved.
	ID int64 `json:"id,omitempty"`

	// Seed is the crawl's start URL.
	Seed string `json:"seed"`

	// Depth is the depth the crawl ran with.
	Depth int `json:"depth"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl settled or was interrupted.
	FinishedAt time.Time `json:"finished_at"`

	// Interrupted is true when the crawl was cut short by shutdown.
	Interrupted bool `json:"interrupted"`

	// Pages lists the downloaded pages sorted by URL.
	Pages []PageInfo `json:"pages"`

	// Failures lists the failed identifiers sorted by URL.
	Failures []Failure `json:"failures"`
}

// Failure is one failed identifier of a crawl.
type Failure struct {
	// URL is the identifier the failure is recorded against.
	URL string `json:"url"`

	// Kind is the failure class: malformed, fetch or extraction.
	Kind crawler.Kind `json:"kind"`

	// Error is the failure message.
	Error string `json:"error"`
}

// PageLookup returns the metadata recorded for a downloaded URL.
type PageLookup func(url string) (PageInfo, bool)

// NewCrawlReport builds the report of a settled (or interrupted) crawl.
// lookup supplies page metadata; nil or a miss leaves only the URL.
// A nil result yields an empty report.
func NewCrawlReport(seed string, depth int, started, finished time.Time, result *crawler.Result, lookup PageLookup) *CrawlReport {
	r := &CrawlReport{
		Seed:       seed,
		Depth:      depth,
		StartedAt:  started,
		FinishedAt: finished,
		Pages:      []PageInfo{},
		Failures:   []Failure{},
	}
	if result == nil {
		return r
	}

	r.Interrupted = result.Interrupted()

	for _, id := range result.Downloaded {
		info := PageInfo{URL: id}
		if lookup != nil {
			if found, ok := lookup(id); ok {
				info = found
				info.URL = id
			}
		}
		r.Pages = append(r.Pages, info)
	}
	sort.Slice(r.Pages, func(i, j int) bool {
		return r.Pages[i].URL < r.Pages[j].URL
	})

	for _, id := range slices.Sorted(maps.Keys(result.Errors)) {
		err := result.Errors[id]
		r.Failures = append(r.Failures, Failure{
			URL:   id,
			Kind:  crawler.KindOf(err),
			Error: err.Error(),
		})
	}
	return r
}

// Duration returns how long the crawl ran.
func (r *CrawlReport) Duration() time.Duration {
	return r.Summary().Duration()
}

// Visited returns the number of identifiers the crawl claimed.
func (r *CrawlReport) Visited() int {
	return len(r.Pages) + len(r.Failures)
}

// FailureCounts returns the number of failures per kind. Every known kind
// is present, with zero when it has no failures.
func (r *CrawlReport) FailureCounts() map[crawler.Kind]int {
	counts := make(map[crawler.Kind]int, len(crawler.Kinds()))
	for _, kind := range crawler.Kinds() {
		counts[kind] = 0
	}
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// FailuresOfKind returns the failures of one kind, in URL order.
func (r *CrawlReport) FailuresOfKind(kind crawler.Kind) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Status returns "complete" or "interrupted".
func (r *CrawlReport) Status() string {
	if r.Interrupted {
		return "interrupted"
	}
	return "complete"
}

// CrawlSummary describes a crawl without its pages and failures.
// It is what history listings and batch overviews show.
type CrawlSummary struct {
	// ID is the database row id, zero for unsaved reports.
	ID int64 `json:"id,omitempty"`

	// Seed is the crawl's start URL.
	Seed string `json:"seed"`

	// Depth is the depth the crawl ran with.
	Depth int `json:"depth"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl ended.
	FinishedAt time.Time `json:"finished_at"`

	// Interrupted is true when the crawl was cut short.
	Interrupted bool `json:"interrupted"`

	// Downloaded is the number of downloaded pages.
	Downloaded int `json:"downloaded"`

	// Failed is the number of failed identifiers.
	Failed int `json:"failed"`
}

// Duration returns how long the crawl ran.
func (s CrawlSummary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summary returns the report's summary.
func (r *CrawlReport) Summary() CrawlSummary {
	return CrawlSummary{
		ID:          r.ID,
		Seed:        r.Seed,
		Depth:       r.Depth,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Interrupted: r.Interrupted,
		Downloaded:  len(r.Pages),
		Failed:      len(r.Failures),
	}
}

// Validate checks the fields a stored report must have.
func (r *CrawlReport) Validate() error {
	switch {
	case r.Seed == "":
		return errors.New("report has no seed")
	case r.StartedAt.IsZero():
		return errors.New("report has no start time")
	}
	return nil
}
