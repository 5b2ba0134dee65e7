package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// durationPrecision is the rounding of durations in human-readable reports.
const durationPrecision = time.Millisecond

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writePages(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummaries outputs the summaries as a Markdown table.
func (w *MarkdownWriter) WriteSummaries(summaries []model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("hostcrawl History")
	md.PlainText("")

	if len(summaries) == 0 {
		md.PlainText("No crawls recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		status := "✅ Complete"
		if s.Interrupted {
			status = "⚠️ Interrupted"
		}
		rows[i] = []string{
			strconv.FormatInt(s.ID, 10),
			s.StartedAt.Local().Format(timeFormat),
			"`" + s.Seed + "`",
			strconv.Itoa(s.Depth),
			strconv.Itoa(s.Downloaded),
			strconv.Itoa(s.Failed),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Seed", "Depth", "Downloaded", "Failed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("hostcrawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Depth", strconv.Itoa(report.Depth)},
			{"Started", report.StartedAt.Local().Format(timeFormat)},
			{"Duration", report.Duration().Round(durationPrecision).String()},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.CrawlReport) string {
	if report.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	return "✅ Complete"
}

// writeSummary writes the count table, chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	counts := report.FailureCounts()
	rows := [][]string{{"Downloaded", strconv.Itoa(len(report.Pages))}}
	for _, kind := range crawler.Kinds() {
		rows = append(rows, []string{kindTitle(kind) + " failures", strconv.Itoa(counts[kind])})
	}
	rows = append(rows, []string{"**Visited**", "**" + strconv.Itoa(report.Visited()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Visited() > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of downloads and failures.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Crawl Outcome"),
		piechart.WithShowData(true),
	)

	if len(report.Pages) > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(len(report.Pages)))
	}
	counts := report.FailureCounts()
	for _, kind := range crawler.Kinds() {
		if counts[kind] > 0 {
			chart.LabelAndIntValue(kindTitle(kind), uint64(counts[kind]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the crawl outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.Interrupted:
		md.Warningf("The crawl was interrupted. %d identifier(s) were visited before shutdown.", report.Visited())
	case len(report.Pages) == 0 && len(report.Failures) > 0:
		md.Cautionf("Nothing could be downloaded. %d identifier(s) failed.", len(report.Failures))
	case len(report.Failures) > 0:
		md.Importantf("%d identifier(s) failed.", len(report.Failures))
	case len(report.Pages) > 0:
		md.Tip("Every visited identifier was downloaded.")
	default:
		md.Note("Nothing was visited.")
	}
	md.PlainText("")
}

// writePages writes the downloaded pages table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages downloaded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		status := "-"
		if p.StatusCode != 0 {
			status = strconv.Itoa(p.StatusCode)
		}
		title := p.Title
		if title == "" {
			title = "-"
		}
		mediaType := p.MediaType()
		if mediaType == "" {
			mediaType = "-"
		}
		rows[i] = []string{
			truncateString(p.URL, 60),
			status,
			truncateString(title, 40),
			mediaType,
			strconv.FormatInt(p.Size, 10),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Title", "Type", "Bytes"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the failures grouped by kind.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Failures")
	md.PlainText("")

	if len(report.Failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	for _, kind := range crawler.Kinds() {
		failures := report.FailuresOfKind(kind)
		if len(failures) == 0 {
			continue
		}

		md.H3(kindTitle(kind))
		md.PlainText("")

		rows := make([][]string, len(failures))
		for i, f := range failures {
			rows[i] = []string{truncateString(f.URL, 60), truncateString(f.Error, 80)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [hostcrawl](https://github.com/nao1215/hostcrawl)*")
}

// kindTitle returns the display name of a failure kind.
func kindTitle(kind crawler.Kind) string {
	return cases.Title(language.English).String(string(kind))
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
