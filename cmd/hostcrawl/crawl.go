package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/hostcrawl/internal/config"
	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/database"
	"github.com/nao1215/hostcrawl/internal/fetch"
	"github.com/nao1215/hostcrawl/internal/log"
	"github.com/nao1215/hostcrawl/internal/model"
	"github.com/nao1215/hostcrawl/internal/pipeline"
	"github.com/nao1215/hostcrawl/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed...]",
		Short: "Crawl one or more sites to a fixed link depth",
		Long: `Crawl fetches each seed URL and every page reachable from it within the
given depth. Depth 1 fetches only the seed, depth 2 also the pages it links
to, and so on. Each page is fetched at most once per seed.

All seeds share one pool of fetch workers and one per-host limit, so two
seeds linking to the same host never exceed --per-host requests to it.

Seeds without a scheme get http://. Seeds on .onion hosts are crawled
through Tor, as is everything when --tor is given.

Press Ctrl+C to stop: queued fetches are dropped, in-flight ones get --grace
to finish, and the partial results are reported and saved.

Examples:
  # Crawl a site three hops deep
  hostcrawl crawl -d 3 https://example.com

  # Stay on the seed's host and honour robots.txt, 2 requests per second
  hostcrawl crawl --same-host --robots --rate 2 example.com

  # Crawl an onion service through a running Tor daemon
  hostcrawl crawl --tor-proxy 127.0.0.1:9050 exampleonion.onion

  # Write a Markdown report to a file
  hostcrawl crawl -m -o reports/example.md example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Crawl depth (1 fetches only the seed)")
	cmd.Flags().Int("fetchers", config.DefaultFetchPoolSize,
		"Number of concurrent fetches across all hosts")
	cmd.Flags().Int("extractors", config.DefaultExtractPoolSize,
		"Number of concurrent link extractions")
	cmd.Flags().Int("per-host", config.DefaultPerHostLimit,
		"Maximum concurrent fetches per host")
	cmd.Flags().Bool("group-by-domain", false,
		"Count subdomains against their registrable domain's per-host limit")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request (default 2m when crawling through Tor)")
	cmd.Flags().Duration("grace", config.DefaultGracePeriod,
		"How long an interrupted crawl waits for in-flight requests")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second per host (0 = unlimited)")
	cmd.Flags().Bool("robots", false,
		"Honour robots.txt")
	cmd.Flags().Bool("same-host", false,
		"Only follow links on the seed's host")

	// Link extraction flags
	cmd.Flags().String("selector", "a[href]",
		"CSS selector of elements whose href is followed")
	cmd.Flags().Int("max-links", config.DefaultMaxLinks,
		"Maximum links taken from a single page")
	cmd.Flags().Int64("max-body", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")

	// Network flags
	cmd.Flags().String("proxy", "",
		"HTTP or SOCKS5 proxy URL (e.g., socks5://127.0.0.1:1080)")
	cmd.Flags().Bool("tor", false,
		"Crawl every seed through Tor")
	cmd.Flags().String("tor-proxy", "",
		"Use an external Tor SOCKS proxy (e.g., 127.0.0.1:9050) instead of the embedded daemon")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .hostcrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write reports to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Do not save the crawl to the history database")
	cmd.Flags().String("db", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Requests through Tor cross several relays.
	if cfg.NeedsTor() && !cmd.Flags().Changed("timeout") {
		cfg.Timeout = config.DefaultTorTimeout
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping crawl...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.FetchPoolSize, err = flags.GetInt("fetchers"); err != nil {
		return nil, err
	}
	if cfg.ExtractPoolSize, err = flags.GetInt("extractors"); err != nil {
		return nil, err
	}
	if cfg.PerHostLimit, err = flags.GetInt("per-host"); err != nil {
		return nil, err
	}
	if cfg.GroupByDomain, err = flags.GetBool("group-by-domain"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.GracePeriod, err = flags.GetDuration("grace"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("robots"); err != nil {
		return nil, err
	}
	if cfg.SameHost, err = flags.GetBool("same-host"); err != nil {
		return nil, err
	}
	if cfg.LinkSelector, err = flags.GetString("selector"); err != nil {
		return nil, err
	}
	if cfg.MaxLinks, err = flags.GetInt("max-links"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorProxyAddress, err = flags.GetString("tor-proxy"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	dbDir, err := flags.GetString("db")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// An explicitly given config file must exist; otherwise a missing file
	// just means no site-specific settings.
	cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	cfg.Seeds = append([]string(nil), args...)

	return cfg, nil
}

// loadSiteConfigs finds and loads the configuration file.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return file, nil
}

// runCrawl sets up the network stack, the orchestrator and the report
// pipeline, then crawls every seed.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"depth", cfg.Depth,
		"tor", cfg.NeedsTor(),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	client, stop, err := newHTTPClient(ctx, cmd.ErrOrStderr(), cfg, logger)
	if err != nil {
		return err
	}
	defer stop()

	resolver := newHostResolver(cfg)
	recorder := newFetcher(client, resolver, cfg, logger)

	orch, err := crawler.New(recorder,
		crawler.WithFetchPoolSize(cfg.FetchPoolSize),
		crawler.WithExtractPoolSize(cfg.ExtractPoolSize),
		crawler.WithPerHostLimit(cfg.PerHostLimit),
		crawler.WithHostResolver(resolver),
		crawler.WithGracePeriod(cfg.GracePeriod),
		crawler.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	defer orch.Close() //nolint:errcheck // drain timeouts are logged by Close

	output, closeOutput, err := openReportOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(true),
	)
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		p.AddStep(pipeline.NewSaveStep(db, pipeline.WithSaveLogger(logger)))
	}
	p.AddStep(pipeline.NewWriteStep(newReportWriter(cfg, output)))

	// Cancellation stops new seeds from starting; closing the orchestrator
	// ends the running crawls with partial results.
	go func() {
		<-ctx.Done()
		if err := orch.Close(); err != nil {
			logger.Warn("crawler did not shut down cleanly", "error", err)
		}
	}()

	bp := pipeline.NewBatchProcessor(orch,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithPipeline(p),
		pipeline.WithPageLookup(recorder.Lookup),
		pipeline.WithBatchLogger(logger),
	)

	targets := buildTargets(cfg)
	status := cmd.ErrOrStderr()
	fmt.Fprintf(status, "Crawling %d seed(s) (depth: %d, concurrency: %d)...\n",
		len(targets), cfg.Depth, cfg.BatchSize)
	startTime := time.Now()

	var mu sync.Mutex
	interrupted := false
	err = bp.ProcessBatchWithCallback(ctx, targets, func(r *model.CrawlReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		interrupted = interrupted || r.Interrupted
		fmt.Fprintf(status, "[%d/%d] %s: %d downloaded, %d failed (%s)\n",
			index+1, len(targets), r.Seed, len(r.Pages), len(r.Failures), r.Status())
	})

	fmt.Fprintf(status, "Crawl finished in %s\n", time.Since(startTime).Round(time.Millisecond))

	if ctx.Err() != nil || interrupted {
		return errCrawlInterrupted
	}
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	return nil
}

// errCrawlInterrupted makes an interrupted run exit non-zero after its
// partial reports were written.
var errCrawlInterrupted = errors.New("crawl interrupted: partial results were reported")

// newHostResolver returns the resolver grouping fetches for the per-host
// limit and the rate limiter.
func newHostResolver(cfg *config.Config) crawler.HostResolver {
	var next crawler.HostResolver = crawler.URLHostResolver{}
	if cfg.GroupByDomain {
		next = fetch.DomainResolver{}
	}
	return fetch.OnionResolver{Next: next}
}

// newFetcher builds the fetcher chain: HTTP fetches, optionally gated by
// robots.txt and a per-host rate limit, recorded for the reports.
func newFetcher(client *http.Client, resolver crawler.HostResolver, cfg *config.Config, logger *slog.Logger) *fetch.Recorder {
	httpFetcher := fetch.NewHTTPFetcher(client,
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLinkSelector(cfg.LinkSelector),
		fetch.WithMaxLinks(cfg.MaxLinks),
		fetch.WithHostHeaders(func(host string) map[string]string {
			return cfg.SiteConfigs.GetSiteConfig(host).RequestHeaders()
		}),
		fetch.WithFetchLogger(logger),
	)

	var f crawler.Fetcher = httpFetcher
	if cfg.RespectRobots {
		f = fetch.NewRobotsFetcher(f, client, httpFetcher.UserAgent(), logger)
	}
	f = fetch.NewRateLimitedFetcher(f, cfg.RateLimit, resolver)
	return fetch.NewRecorder(f)
}

// buildTargets turns the seeds into batch targets. The seed's host selects
// the site config for depth and URL patterns.
func buildTargets(cfg *config.Config) []pipeline.Target {
	targets := make([]pipeline.Target, 0, len(cfg.Seeds))
	for _, seed := range cfg.Seeds {
		var host string
		if u, err := url.Parse(seed); err == nil {
			host = u.Hostname()
		}
		site := cfg.SiteConfigs.GetSiteConfig(host)

		depth := cfg.Depth
		if site.Depth > 0 {
			depth = site.Depth
		}

		var sameHost crawler.Filter
		if cfg.SameHost {
			sameHost = crawler.SameHostFilter(seed)
		}

		targets = append(targets, pipeline.Target{
			Seed:   seed,
			Depth:  depth,
			Filter: crawler.AllOf(crawler.NewPatternFilter(site.IgnorePatterns, site.FollowPatterns), sameHost),
		})
	}
	return targets
}

// newReportWriter returns the writer for the requested report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput opens path for the reports, or returns stdout when path
// is empty. The returned func closes the file.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list every URL visited, so only the owner may read them.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("failed to close output file", "path", path, "error", err)
		}
	}, nil
}
