package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/hostcrawl/internal/model"
	"github.com/nao1215/hostcrawl/internal/report"
)

// ReportStore persists crawl reports. *database.CrawlDB implements it.
type ReportStore interface {
	SaveReport(ctx context.Context, report *model.CrawlReport) error
}

// SaveStep stores every report in a ReportStore.
type SaveStep struct {
	store  ReportStore
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets the logger of a SaveStep.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSaveStep creates a SaveStep writing to store.
func NewSaveStep(store ReportStore, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Step.
func (s *SaveStep) Name() string {
	return "save"
}

// Do implements Step.
func (s *SaveStep) Do(ctx context.Context, r *model.CrawlReport) error {
	if err := s.store.SaveReport(ctx, r); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	s.logger.Debug("report saved", "seed", r.Seed, "id", r.ID)
	return nil
}

// WriteStep writes every report with a report.Writer.
//
// Design decision: Batch crawls finish concurrently, so writes are
// serialized here. Otherwise two reports could interleave on stdout.
type WriteStep struct {
	writer report.Writer
	mu     sync.Mutex
}

// NewWriteStep creates a WriteStep.
func NewWriteStep(w report.Writer) *WriteStep {
	return &WriteStep{writer: w}
}

// Name implements Step.
func (s *WriteStep) Name() string {
	return "write"
}

// Do implements Step.
func (s *WriteStep) Do(_ context.Context, r *model.CrawlReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	// StepName is returned by Name.
	StepName string

	// Func is called by Do.
	Func func(ctx context.Context, report *model.CrawlReport) error
}

// Name implements Step.
func (s StepFunc) Name() string {
	return s.StepName
}

// Do implements Step.
func (s StepFunc) Do(ctx context.Context, r *model.CrawlReport) error {
	return s.Func(ctx, r)
}
