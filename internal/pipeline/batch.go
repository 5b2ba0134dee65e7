package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of seeds crawled at the same time.
const DefaultConcurrency = 4

// Crawler runs one depth-bounded crawl. *crawler.Orchestrator implements it.
type Crawler interface {
	Crawl(seed string, maxDepth int, filter crawler.Filter) (*crawler.Result, error)
}

// Target is one seed of a batch with its crawl settings.
type Target struct {
	// Seed is the start URL.
	Seed string

	// Depth is the crawl depth for this seed.
	Depth int

	// Filter restricts which identifiers the crawl may visit. Nil allows all.
	Filter crawler.Filter
}

// BatchProcessor crawls several seeds concurrently through one Crawler and
// runs a Pipeline on each finished report.
//
// Design decision: All seeds share a single orchestrator, so two seeds that
// link to the same host still respect one per-host limit. Each seed still
// gets its own visited set and report because Crawl keeps them per call.
type BatchProcessor struct {
	// crawler runs the crawls.
	crawler Crawler

	// pipeline runs on every finished report. Nil means no steps.
	pipeline *Pipeline

	// lookup supplies page metadata for reports.
	lookup model.PageLookup

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithPipeline sets the pipeline run on every finished report.
func WithPipeline(p *Pipeline) BatchOption {
	return func(b *BatchProcessor) {
		b.pipeline = p
	}
}

// WithPageLookup sets where page metadata for reports comes from.
func WithPageLookup(lookup model.PageLookup) BatchOption {
	return func(b *BatchProcessor) {
		b.lookup = lookup
	}
}

// NewBatchProcessor creates a new BatchProcessor using c for every crawl.
func NewBatchProcessor(c Crawler, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		crawler:     c,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every target and returns their reports in target
// order. Targets not started before ctx is cancelled have no report.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each target gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// The error joins ctx's error and every pipeline error. Crawl failures are
// part of the reports, not of the error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*model.CrawlReport, error) {
	reports := make([]*model.CrawlReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.CrawlReport, index int) {
		// Each index is written by exactly one goroutine.
		reports[index] = report
	})
	return slices.DeleteFunc(reports, func(r *model.CrawlReport) bool { return r == nil }), err
}

// ProcessBatchWithCallback crawls every target and calls callback for each
// finished report once its pipeline has run. This is useful for streaming
// results.
//
// The callback is called from the goroutine that ran the crawl, so it
// should be thread-safe if it accesses shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []Target,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := bp.now()

	var (
		mu       sync.Mutex
		stepErrs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			report := bp.crawl(target, i, len(targets))

			// Reports of interrupted crawls are still saved and written.
			if err := bp.runPipeline(context.WithoutCancel(gctx), report); err != nil {
				mu.Lock()
				stepErrs = append(stepErrs, fmt.Errorf("%s: %w", target.Seed, err))
				mu.Unlock()
			}

			if callback != nil {
				callback(report, i)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_seeds", len(targets),
		"elapsed", bp.now().Sub(startTime),
	)

	return errors.Join(append([]error{waitErr}, stepErrs...)...)
}

// crawl runs one target and builds its report.
func (bp *BatchProcessor) crawl(target Target, index, total int) *model.CrawlReport {
	bp.logger.Info("crawling seed",
		"seed", target.Seed,
		"depth", target.Depth,
		"index", index+1,
		"total", total,
	)

	started := bp.now()
	result, err := bp.crawler.Crawl(target.Seed, target.Depth, target.Filter)
	report := model.NewCrawlReport(target.Seed, target.Depth, started, bp.now(), result, bp.lookup)

	if errors.Is(err, crawler.ErrClosed) {
		// A closed orchestrator may not have recorded anything as
		// interrupted, e.g. when Crawl was refused outright.
		report.Interrupted = true
		bp.logger.Warn("crawl interrupted",
			"seed", target.Seed,
			"downloaded", len(report.Pages),
		)
		return report
	}

	bp.logger.Info("crawl completed",
		"seed", target.Seed,
		"downloaded", len(report.Pages),
		"failed", len(report.Failures),
	)
	return report
}

func (bp *BatchProcessor) runPipeline(ctx context.Context, report *model.CrawlReport) error {
	if bp.pipeline == nil {
		return nil
	}
	return bp.pipeline.Execute(ctx, report)
}
