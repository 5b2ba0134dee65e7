package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
)

// Default HTTP fetcher settings.
const (
	// DefaultUserAgent mimics Tor Browser so that crawls over Tor do not
	// stand out.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultMaxBodySize is the largest body read from a single response.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// HTTPFetcher fetches pages over HTTP. It implements crawler.Fetcher.
//
// Design decision: The http.Client is injected rather than built here so
// the same fetcher works over the clearnet, an HTTP proxy or Tor's SOCKS
// port. The tor package builds the Tor-aware client.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	hostHeaders func(host string) map[string]string
	maxBodySize int64
	selector    string
	maxLinks    int
	logger      *slog.Logger
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers = maps.Clone(headers)
	}
}

// WithHostHeaders sets a function returning extra headers for a host.
// They are applied after WithHeaders and win on conflict.
func WithHostHeaders(fn func(host string) map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.hostHeaders = fn
	}
}

// WithMaxBodySize caps the number of body bytes read per response.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithLinkSelector sets the CSS selector of elements whose href is followed.
func WithLinkSelector(selector string) HTTPOption {
	return func(f *HTTPFetcher) {
		if selector != "" {
			f.selector = selector
		}
	}
}

// WithMaxLinks caps the number of links taken from a single page.
func WithMaxLinks(n int) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxLinks = n
		}
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *slog.Logger) HTTPOption {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewHTTPFetcher creates a fetcher using client. A nil client uses a plain
// http.Client with a 30 second timeout.
func NewHTTPFetcher(client *http.Client, opts ...HTTPOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		selector:    DefaultLinkSelector,
		maxLinks:    DefaultMaxLinks,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the underlying HTTP client, for robots.txt requests.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// UserAgent returns the User-Agent the fetcher sends.
func (f *HTTPFetcher) UserAgent() string {
	return f.userAgent
}

// Fetch performs a GET request for id and returns the response as a *Page.
// Responses with status 400 or above fail with a *StatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, id string) (crawler.Document, error) {
	return f.FetchPage(ctx, id)
}

// FetchPage is Fetch with a concrete return type.
func (f *HTTPFetcher) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.hostHeaders != nil {
		for k, v := range f.hostHeaders(req.URL.Hostname()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	// Read one byte past the limit to detect truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
		f.logger.Debug("response body truncated", "url", pageURL, "limit", f.maxBodySize)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	sum := sha256.Sum256(body)
	return &Page{
		URL:         pageURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
		Hash:        hex.EncodeToString(sum[:]),
		FetchedAt:   time.Now(),
		selector:    f.selector,
		maxLinks:    f.maxLinks,
	}, nil
}
