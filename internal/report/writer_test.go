package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CrawlReport {
	started := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	return &model.CrawlReport{
		ID:         3,
		Seed:       "http://example.com/",
		Depth:      2,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Pages: []model.PageInfo{
			{URL: "http://example.com/", StatusCode: 200, ContentType: "text/html; charset=utf-8", Title: "Example Home", Size: 120},
			{URL: "http://example.com/docs", FinalURL: "http://example.com/docs/", StatusCode: 200, Size: 80},
		},
		Failures: []model.Failure{
			{URL: "http://example.com/missing", Kind: crawler.KindFetch, Error: "fetch failure: unexpected status 404"},
			{URL: "::bad", Kind: crawler.KindMalformed, Error: "malformed identifier: missing protocol scheme"},
		},
	}
}

func createTestSummaries() []model.CrawlSummary {
	started := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	return []model.CrawlSummary{
		{ID: 2, Seed: "http://example.com/", Depth: 2, StartedAt: started, FinishedAt: started, Downloaded: 5, Failed: 1},
		{ID: 1, Seed: "http://example.org/", Depth: 1, StartedAt: started, FinishedAt: started, Interrupted: true},
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"HOSTCRAWL REPORT",
			"http://example.com/",
			"Duration:   1.5s",
			"Status:     Complete",
			"DOWNLOADED: 2",
			"FETCH:      1",
			"MALFORMED:  1",
			"EXTRACTION: 0",
			"VISITED:    4 identifiers",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("lists failures by kind", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[Fetch]") || !strings.Contains(output, "http://example.com/missing") {
			t.Error("expected fetch failure section")
		}
		if strings.Contains(output, "[Extraction]") {
			t.Error("empty kinds should be hidden by default")
		}
		if strings.Index(output, "[Malformed]") > strings.Index(output, "[Fetch]") {
			t.Error("expected malformed failures before fetch failures")
		}
	})

	t.Run("pages only in verbose mode", func(t *testing.T) {
		t.Parallel()

		var quiet, verbose bytes.Buffer
		if _, err := NewSimpleWriter(&quiet).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewSimpleWriter(&verbose, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(quiet.String(), "Title: Example Home") {
			t.Error("pages should not be listed without verbose")
		}
		if !strings.Contains(verbose.String(), "Title: Example Home") {
			t.Error("expected page title in verbose output")
		}
		if !strings.Contains(verbose.String(), "Final URL: http://example.com/docs/") {
			t.Error("expected redirect target in verbose output")
		}
	})

	t.Run("show empty sections", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Failures = nil

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[Extraction]\n  None") {
			t.Errorf("expected empty kind section\n%s", buf.String())
		}
	})

	t.Run("interrupted status", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Interrupted = true

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "INTERRUPTED") {
			t.Error("expected interrupted status")
		}
	})

	t.Run("summaries", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteSummaries(createTestSummaries()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines\n%s", len(lines), buf.String())
		}
		if !strings.Contains(lines[2], "interrupted") {
			t.Errorf("expected interrupted run, got %q", lines[2])
		}
	})

	t.Run("no summaries", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteSummaries(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No crawls recorded") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Seed != "http://example.com/" || len(decoded.Pages) != 2 || len(decoded.Failures) != 2 {
			t.Errorf("unexpected decoded report %+v", decoded)
		}
		if decoded.Failures[0].Kind != crawler.KindFetch {
			t.Errorf("expected kind to survive encoding, got %q", decoded.Failures[0].Kind)
		}
	})

	t.Run("compact output is one line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact JSON with a trailing newline")
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"seed\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("nil summaries encode as empty array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteSummaries(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("got %q, want []", buf.String())
		}
	})

	t.Run("full writer wraps with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded struct {
			Version       string         `json:"version"`
			Report        map[string]any `json:"report"`
			FailureCounts map[string]int `json:"failure_counts"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version != "v1.2.3" {
			t.Errorf("Version = %q", decoded.Version)
		}
		if decoded.Report["seed"] != "http://example.com/" {
			t.Errorf("unexpected wrapped report %v", decoded.Report)
		}
		if decoded.FailureCounts["fetch"] != 1 || decoded.FailureCounts["extraction"] != 0 {
			t.Errorf("unexpected counts %v", decoded.FailureCounts)
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"# hostcrawl Report",
			"## Summary",
			"## Pages",
			"## Failures",
			"### Fetch",
			"### Malformed",
			"Example Home",
			"text/html",
			"```mermaid",
			"Crawl Outcome",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "### Extraction") {
			t.Error("empty kinds should not get a section")
		}
	})

	t.Run("empty report", func(t *testing.T) {
		t.Parallel()

		report := &model.CrawlReport{Seed: "http://example.com/", StartedAt: time.Now(), FinishedAt: time.Now()}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if strings.Contains(output, "```mermaid") {
			t.Error("no chart expected for an empty crawl")
		}
		if !strings.Contains(output, "No pages downloaded.") || !strings.Contains(output, "No failures.") {
			t.Error("expected empty section texts")
		}
	})

	t.Run("interrupted report warns", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Interrupted = true

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Error("expected warning alert")
		}
	})

	t.Run("summaries table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteSummaries(createTestSummaries()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "# hostcrawl History") || !strings.Contains(output, "`http://example.org/`") {
			t.Errorf("unexpected output\n%s", output)
		}
	})
}

// failingWriter fails every write.
type failingWriter struct{}

var errWrite = errors.New("write failed")

func (failingWriter) Write(*model.CrawlReport) (int, error) { return 0, errWrite }
func (failingWriter) WriteSummaries([]model.CrawlSummary) (int, error) { return 0, errWrite }

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := m.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("total %d, want %d", n, text.Len()+js.Len())
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		m := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
		if _, err := m.WriteSummaries(createTestSummaries()); !errors.Is(err, errWrite) {
			t.Errorf("expected errWrite, got %v", err)
		}
		if after.Len() != 0 {
			t.Error("writers after a failure must not be called")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 2, "ab"},
		{"日本語のタイトルです", 6, "日本語..."},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}
