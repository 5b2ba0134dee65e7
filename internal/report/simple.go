package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every downloaded page, not just the counts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writePages(&sb, report)
	w.writeFailures(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummaries outputs one line per crawl.
func (w *SimpleWriter) WriteSummaries(summaries []model.CrawlSummary) (int, error) {
	var sb strings.Builder

	if len(summaries) == 0 {
		sb.WriteString("No crawls recorded.\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "%-6s  %-23s  %-40s  %5s  %10s  %6s  %s\n",
		"ID", "STARTED", "SEED", "DEPTH", "DOWNLOADED", "FAILED", "STATUS")
	for _, s := range summaries {
		status := "complete"
		if s.Interrupted {
			status = "interrupted"
		}
		fmt.Fprintf(&sb, "%-6d  %-23s  %-40s  %5d  %10d  %6d  %s\n",
			s.ID,
			s.StartedAt.Local().Format(timeFormat),
			truncateString(s.Seed, 40),
			s.Depth,
			s.Downloaded,
			s.Failed,
			status,
		)
	}
	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         HOSTCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:       %s\n", report.Seed)
	fmt.Fprintf(sb, "Depth:      %d\n", report.Depth)
	fmt.Fprintf(sb, "Started:    %s\n", report.StartedAt.Local().Format(timeFormat))
	fmt.Fprintf(sb, "Duration:   %s\n", report.Duration().Round(durationPrecision))

	if report.Interrupted {
		sb.WriteString("Status:     INTERRUPTED (partial results)\n")
	} else {
		sb.WriteString("Status:     Complete\n")
	}
	sb.WriteString("\n")
}

// writeSummary writes the download and failure counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  DOWNLOADED: %d\n", len(report.Pages))
	counts := report.FailureCounts()
	for _, kind := range crawler.Kinds() {
		fmt.Fprintf(sb, "  %-11s %d\n", strings.ToUpper(string(kind))+":", counts[kind])
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  VISITED:    %d identifiers\n", report.Visited())
	sb.WriteString("\n")
}

// writePages lists downloaded pages in verbose mode.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	if !w.verbose {
		return
	}
	if len(report.Pages) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Pages) == 0 {
		sb.WriteString("  No pages downloaded\n\n")
		return
	}
	for _, p := range report.Pages {
		status := "-"
		if p.StatusCode != 0 {
			status = strconv.Itoa(p.StatusCode)
		}
		fmt.Fprintf(sb, "  [%s] %s\n", status, p.URL)
		if p.Title != "" {
			fmt.Fprintf(sb, "        Title: %s\n", p.Title)
		}
		if p.Redirected() {
			fmt.Fprintf(sb, "        Final URL: %s\n", p.FinalURL)
		}
	}
	sb.WriteString("\n")
}

// writeFailures writes the failures grouped by kind.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failures) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, kind := range crawler.Kinds() {
		failures := report.FailuresOfKind(kind)
		if len(failures) == 0 && !w.showEmpty {
			continue
		}

		fmt.Fprintf(sb, "[%s]\n", kindTitle(kind))
		if len(failures) == 0 {
			sb.WriteString("  None\n\n")
			continue
		}
		for _, f := range failures {
			fmt.Fprintf(sb, "  * %s\n", f.URL)
			fmt.Fprintf(sb, "    Error: %s\n", f.Error)
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by hostcrawl\n")
	sb.WriteString("https://github.com/nao1215/hostcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
