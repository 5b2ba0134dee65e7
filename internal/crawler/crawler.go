package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Fetcher retrieves the document behind an identifier.
// Implementations may block on I/O; they run on the fetch pool.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (Document, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id string) (Document, error)

// Fetch calls f(ctx, id).
func (f FetcherFunc) Fetch(ctx context.Context, id string) (Document, error) {
	return f(ctx, id)
}

// Document exposes the outbound links of fetched content.
// Links runs on the extract pool.
type Document interface {
	Links() ([]string, error)
}

// HostResolver maps an identifier to the key its fetches are throttled by.
type HostResolver interface {
	Resolve(id string) (string, error)
}

// HostResolverFunc adapts a function to the HostResolver interface.
type HostResolverFunc func(id string) (string, error)

// Resolve calls f(id).
func (f HostResolverFunc) Resolve(id string) (string, error) {
	return f(id)
}

// Filter decides whether an identifier may be visited at all.
// A nil Filter accepts everything.
type Filter func(id string) bool

// URLHostResolver resolves URLs to their lower-cased host name.
// It is the default HostResolver of an Orchestrator.
type URLHostResolver struct{}

// Resolve returns the host of id, failing when id is not an absolute URL
// with a host.
func (URLHostResolver) Resolve(id string) (string, error) {
	u, err := url.Parse(id)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%q has no scheme", id)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%q has no host", id)
	}
	return host, nil
}

// Result is the outcome of one Crawl call.
type Result struct {
	// Downloaded holds, in sorted order, every visited identifier without a
	// recorded failure.
	Downloaded []string

	// Errors maps each failed identifier to its first recorded failure.
	Errors map[string]error
}

func newResult(visited []string, errs map[string]error) *Result {
	if errs == nil {
		errs = make(map[string]error)
	}
	downloaded := make([]string, 0, len(visited))
	for _, id := range visited {
		if _, failed := errs[id]; !failed {
			downloaded = append(downloaded, id)
		}
	}
	return &Result{Downloaded: downloaded, Errors: errs}
}

// CountByKind returns the number of failures per kind.
func (r *Result) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, err := range r.Errors {
		counts[KindOf(err)]++
	}
	return counts
}

// Interrupted reports whether any failure was caused by closing the
// orchestrator while the crawl was running.
func (r *Result) Interrupted() bool {
	for _, err := range r.Errors {
		if errors.Is(err, ErrClosed) {
			return true
		}
	}
	return false
}
