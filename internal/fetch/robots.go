package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// DefaultRobotsTTL is how long robots.txt rules are cached per host.
const DefaultRobotsTTL = 30 * time.Minute

// RobotsFetcher refuses URLs that the host's robots.txt disallows for the
// configured user agent.
//
// Design decision: Robots errors fail open. A missing, unreachable or
// broken robots.txt allows everything, which is how browsers and most
// crawlers treat it.
type RobotsFetcher struct {
	next      crawler.Fetcher
	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]robotsEntry

	// inflight collapses concurrent cache misses for one host into a
	// single robots.txt request.
	inflight singleflight.Group
}

type robotsEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// NewRobotsFetcher wraps next with robots.txt enforcement. robots.txt is
// requested with client, which should be the same client next uses.
func NewRobotsFetcher(next crawler.Fetcher, client *http.Client, userAgent string, logger *slog.Logger) *RobotsFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsFetcher{
		next:      next,
		client:    client,
		userAgent: userAgent,
		ttl:       DefaultRobotsTTL,
		logger:    logger,
		cache:     make(map[string]robotsEntry),
	}
}

// Fetch delegates to the wrapped fetcher if robots.txt allows id.
func (r *RobotsFetcher) Fetch(ctx context.Context, id string) (crawler.Document, error) {
	target, err := url.Parse(id)
	if err != nil {
		return nil, err
	}
	if !r.Allowed(ctx, target) {
		return nil, fmt.Errorf("%s: %w", id, ErrDisallowedByRobots)
	}
	return r.next.Fetch(ctx, id)
}

// Allowed reports whether robots.txt permits target.
func (r *RobotsFetcher) Allowed(ctx context.Context, target *url.URL) bool {
	if !target.IsAbs() {
		return true
	}

	rules, err := r.rules(ctx, target)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", "host", target.Host, "error", err)
		return true
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return rules.TestAgent(path, r.userAgent)
}

func (r *RobotsFetcher) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	key := strings.ToLower(target.Scheme + "://" + target.Host)

	if rules, ok := r.cached(key); ok {
		return rules, nil
	}

	v, err, _ := r.inflight.Do(key, func() (any, error) {
		if rules, ok := r.cached(key); ok {
			return rules, nil
		}
		rules, err := r.download(ctx, key)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = robotsEntry{fetched: time.Now(), rules: rules}
		r.mu.Unlock()
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil //nolint:forcetypeassert // only type stored
}

// cached returns unexpired rules for key.
func (r *RobotsFetcher) cached(key string) (*robotstxt.RobotsData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[key]
	if !ok || time.Since(entry.fetched) >= r.ttl {
		return nil, false
	}
	return entry.rules, true
}

// download requests and parses robots.txt from the origin key.
func (r *RobotsFetcher) download(ctx context.Context, key string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// FromResponse maps 4xx to allow-all and 5xx to disallow-all.
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
