package fetch

import (
	"context"
	"strings"
	"sync"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"golang.org/x/time/rate"
)

// RateLimitedFetcher delays requests so that no host receives more than a
// fixed number of requests per second.
//
// Design decision: Rate limiting lives in a Fetcher decorator instead of in
// host admission because admission bounds concurrency, not frequency. A
// fast host with a per-host limit of 1 would still be hit back to back.
// The wait happens on the fetch worker, which already holds the host slot,
// so admission ordering is unaffected.
type RateLimitedFetcher struct {
	next     crawler.Fetcher
	resolver crawler.HostResolver
	limit    rate.Limit
	burst    int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitedFetcher wraps next with a limit of rps requests per second
// per host, as grouped by resolver (nil means crawler.URLHostResolver).
// A non-positive rps disables limiting and returns next unchanged.
func NewRateLimitedFetcher(next crawler.Fetcher, rps float64, resolver crawler.HostResolver) crawler.Fetcher {
	if rps <= 0 {
		return next
	}
	if resolver == nil {
		resolver = crawler.URLHostResolver{}
	}
	return &RateLimitedFetcher{
		next:     next,
		resolver: resolver,
		limit:    rate.Limit(rps),
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch waits for the host's limiter, then delegates.
func (r *RateLimitedFetcher) Fetch(ctx context.Context, id string) (crawler.Document, error) {
	host, err := r.resolver.Resolve(id)
	if err == nil {
		if err := r.limiter(host).Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.next.Fetch(ctx, id)
}

func (r *RateLimitedFetcher) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[host] = l
	}
	return l
}
