package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "hostcrawl"

	// DefaultDepth fetches the seed and two further hops.
	DefaultDepth = 3

	// DefaultFetchPoolSize is the number of concurrent fetches across all hosts.
	DefaultFetchPoolSize = 16

	// DefaultExtractPoolSize is the number of concurrent link extractions.
	// Extraction is CPU bound, so a few workers keep up with many fetchers.
	DefaultExtractPoolSize = 4

	// DefaultPerHostLimit is the number of concurrent fetches per host.
	// Two is polite enough for small sites and still overlaps latency.
	DefaultPerHostLimit = 2

	// DefaultTimeout bounds a single HTTP request on the clearnet.
	DefaultTimeout = 30 * time.Second

	// DefaultTorTimeout replaces DefaultTimeout for Tor crawls because every
	// request crosses several relays.
	DefaultTorTimeout = 120 * time.Second

	// DefaultGracePeriod is how long an interrupted crawl waits for
	// in-flight requests.
	DefaultGracePeriod = time.Second

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 4

	// DefaultMaxLinks caps the links taken from a single page.
	DefaultMaxLinks = 500

	// DefaultMaxBodySize limits the response body read per page.
	// 5MB is enough for HTML while bounding memory.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultTorProxyAddress is the SOCKS port of a system Tor daemon.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is how long to wait for the embedded Tor
	// daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultUserAgent identifies hostcrawl in server logs.
	DefaultUserAgent = "hostcrawl/1.0 (+https://github.com/nao1215/hostcrawl)"
)

// Config holds every option of a crawl run. It is populated from CLI flags
// and passed down explicitly rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Seeds are the start URLs, one crawl each.
	Seeds []string

	// Depth is the crawl depth: 1 fetches only the seed, 2 also its links.
	Depth int

	// FetchPoolSize is the number of fetch workers shared by all seeds.
	FetchPoolSize int

	// ExtractPoolSize is the number of link extraction workers.
	ExtractPoolSize int

	// PerHostLimit caps concurrent fetches to one host.
	PerHostLimit int

	// GroupByDomain makes subdomains share their registrable domain's
	// per-host limit (a.example.com and b.example.com count as one host).
	GroupByDomain bool

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// GracePeriod is how long an interrupted crawl waits for in-flight work.
	GracePeriod time.Duration

	// RateLimit is the maximum number of requests per second per host.
	// Zero means unlimited.
	RateLimit float64

	// RespectRobots enables robots.txt enforcement.
	RespectRobots bool

	// SameHost restricts each crawl to its seed's host.
	SameHost bool

	// LinkSelector is the CSS selector of elements whose href is followed.
	LinkSelector string

	// MaxLinks caps the links taken from a single page.
	MaxLinks int

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// UserAgent is the User-Agent header of every request.
	UserAgent string

	// ProxyURL routes requests through an HTTP or SOCKS5 proxy.
	ProxyURL string

	// UseTor routes requests through Tor. It is implied by .onion seeds.
	UseTor bool

	// TorProxyAddress is an external Tor SOCKS5 proxy. When empty and Tor
	// is used, an embedded Tor daemon is started.
	TorProxyAddress string

	// TorStartupTimeout bounds the embedded Tor daemon's bootstrap.
	TorStartupTimeout time.Duration

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit config file path, if any.
	ConfigFilePath string

	// SiteConfigs holds the per-site overrides from the config file.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is written instead of stdout when set.
	ReportFile string

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB stores every finished crawl in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, pool
// sizes). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Depth:             DefaultDepth,
		FetchPoolSize:     DefaultFetchPoolSize,
		ExtractPoolSize:   DefaultExtractPoolSize,
		PerHostLimit:      DefaultPerHostLimit,
		Timeout:           DefaultTimeout,
		GracePeriod:       DefaultGracePeriod,
		LinkSelector:      "a[href]",
		MaxLinks:          DefaultMaxLinks,
		MaxBodySize:       DefaultMaxBodySize,
		UserAgent:         DefaultUserAgent,
		TorStartupTimeout: DefaultTorStartupTimeout,
		BatchSize:         DefaultBatchSize,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for hostcrawl.
// On Linux: ~/.local/share/hostcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for hostcrawl.
// On Linux: ~/.config/hostcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// NeedsTor reports whether the run must go through Tor, either because it
// was requested or because a seed is an onion service.
func (c *Config) NeedsTor() bool {
	if c.UseTor || c.TorProxyAddress != "" {
		return true
	}
	for _, seed := range c.Seeds {
		u, err := url.Parse(seed)
		if err == nil && strings.HasSuffix(strings.ToLower(u.Hostname()), ".onion") {
			return true
		}
	}
	return false
}

// Validate checks the configuration and returns the first problem found.
// Seeds are normalized in place.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for i, seed := range c.Seeds {
		normalized, err := NormalizeSeed(seed)
		if err != nil {
			return err
		}
		c.Seeds[i] = normalized
	}

	switch {
	case c.Depth < 1:
		return ErrInvalidDepth
	case c.FetchPoolSize < 1:
		return ErrInvalidFetchPoolSize
	case c.ExtractPoolSize < 1:
		return ErrInvalidExtractPoolSize
	case c.PerHostLimit < 1:
		return ErrInvalidPerHostLimit
	case c.Timeout <= 0:
		return ErrInvalidTimeout
	case c.GracePeriod < 0:
		return ErrInvalidGracePeriod
	case c.BatchSize <= 0:
		return ErrInvalidBatchSize
	case c.RateLimit < 0:
		return ErrInvalidRateLimit
	case c.MaxBodySize < 0:
		return ErrInvalidMaxBodySize
	case c.MaxLinks < 0:
		return ErrInvalidMaxLinks
	case c.JSONReport && c.MarkdownReport:
		return ErrConflictingReportFormats
	case c.ProxyURL != "" && c.NeedsTor():
		return ErrConflictingProxy
	}
	return nil
}

// NormalizeSeed turns user input into a crawlable seed URL. A missing
// scheme becomes http:// and an empty path becomes "/", so "example.com"
// and "http://example.com/" name the same seed.
func NormalizeSeed(seed string) (string, error) {
	seed = strings.TrimSpace(seed)
	if seed != "" && !strings.Contains(seed, "://") {
		seed = "http://" + seed
	}

	u, err := url.Parse(seed)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
