package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/model"
	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the database file created inside the database directory.
const DBFileName = "hostcrawl.db"

// timeLayout stores timestamps in UTC with fixed width so that text ordering
// matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CrawlDB stores crawl reports in SQLite.
//
// Design decision: Reports are stored relationally (runs, pages, failures)
// rather than as one JSON blob per run. That keeps per-URL queries possible
// and lets history listings read only the crawl_runs table.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also serializes the batch
	// runner's concurrent SaveReport calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		downloaded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Downloaded pages of a run
	CREATE TABLE IF NOT EXISTS crawl_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		final_url TEXT,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		size INTEGER,
		truncated INTEGER NOT NULL DEFAULT 0,
		hash TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON crawl_pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON crawl_pages(url);

	-- Failed identifiers of a run
	CREATE TABLE IF NOT EXISTS crawl_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		error TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON crawl_failures(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a report in one transaction and sets report.ID.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) (err error) {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (seed, depth, started_at, finished_at, interrupted, downloaded, failed)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.Seed,
		report.Depth,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.Interrupted,
		len(report.Pages),
		len(report.Failures),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run id: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_pages (run_id, url, final_url, status_code, content_type, title, size, truncated, hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	for _, p := range report.Pages {
		if _, err = pageStmt.ExecContext(ctx, id, p.URL, p.FinalURL, p.StatusCode,
			p.ContentType, p.Title, p.Size, p.Truncated, p.Hash); err != nil {
			return fmt.Errorf("failed to save page %s: %w", p.URL, err)
		}
	}

	failureStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_failures (run_id, url, kind, error)
	VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer failureStmt.Close()

	for _, f := range report.Failures {
		if _, err = failureStmt.ExecContext(ctx, id, f.URL, string(f.Kind), f.Error); err != nil {
			return fmt.Errorf("failed to save failure %s: %w", f.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	report.ID = id
	return nil
}

// GetReport retrieves a full report by its run ID.
// Returns nil, nil if there is no such run.
func (cdb *CrawlDB) GetReport(ctx context.Context, id int64) (*model.CrawlReport, error) {
	run, err := cdb.getRun(ctx, `WHERE id = ?`, id)
	if err != nil || run == nil {
		return nil, err
	}
	return cdb.loadReport(ctx, run)
}

// LatestReport retrieves the most recent report for a seed.
// Returns nil, nil if the seed was never crawled.
func (cdb *CrawlDB) LatestReport(ctx context.Context, seed string) (*model.CrawlReport, error) {
	run, err := cdb.getRun(ctx, `WHERE seed = ? ORDER BY started_at DESC, id DESC LIMIT 1`, seed)
	if err != nil || run == nil {
		return nil, err
	}
	return cdb.loadReport(ctx, run)
}

// ListRuns returns the runs of a seed, newest first.
// An empty seed lists the runs of every seed.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string) ([]model.CrawlSummary, error) {
	query := `SELECT id, seed, depth, started_at, finished_at, interrupted, downloaded, failed FROM crawl_runs`
	var args []any
	if seed != "" {
		query += ` WHERE seed = ?`
		args = append(args, seed)
	}
	query += ` ORDER BY started_at DESC, id DESC`

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []model.CrawlSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *run)
	}
	return results, rows.Err()
}

// ListSeeds returns every crawled seed in alphabetical order.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// DeleteRun removes a run with its pages and failures.
// It reports whether a run was deleted.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id int64) (bool, error) {
	res, err := cdb.db.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	return n > 0, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.CrawlSummary, error) {
	var (
		run               model.CrawlSummary
		started, finished string
	)
	if err := row.Scan(&run.ID, &run.Seed, &run.Depth, &started, &finished,
		&run.Interrupted, &run.Downloaded, &run.Failed); err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	return &run, nil
}

// getRun returns the first run matching where, or nil when there is none.
func (cdb *CrawlDB) getRun(ctx context.Context, where string, args ...any) (*model.CrawlSummary, error) {
	row := cdb.db.QueryRowContext(ctx,
		`SELECT id, seed, depth, started_at, finished_at, interrupted, downloaded, failed FROM crawl_runs `+where,
		args...)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}
	return run, nil
}

// loadReport reads the pages and failures of run.
func (cdb *CrawlDB) loadReport(ctx context.Context, run *model.CrawlSummary) (*model.CrawlReport, error) {
	report := &model.CrawlReport{
		ID:          run.ID,
		Seed:        run.Seed,
		Depth:       run.Depth,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Interrupted: run.Interrupted,
		Pages:       []model.PageInfo{},
		Failures:    []model.Failure{},
	}

	pages, err := cdb.db.QueryContext(ctx, `
	SELECT url, final_url, status_code, content_type, title, size, truncated, hash
	FROM crawl_pages WHERE run_id = ? ORDER BY url
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer pages.Close()

	for pages.Next() {
		var (
			p                                  model.PageInfo
			finalURL, contentType, title, hash sql.NullString
			status, size                       sql.NullInt64
		)
		if err := pages.Scan(&p.URL, &finalURL, &status, &contentType, &title, &size, &p.Truncated, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.FinalURL = finalURL.String
		p.StatusCode = int(status.Int64)
		p.ContentType = contentType.String
		p.Title = title.String
		p.Size = size.Int64
		p.Hash = hash.String
		report.Pages = append(report.Pages, p)
	}
	if err := pages.Err(); err != nil {
		return nil, err
	}

	failures, err := cdb.db.QueryContext(ctx, `
	SELECT url, kind, error FROM crawl_failures WHERE run_id = ? ORDER BY url
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get failures: %w", err)
	}
	defer failures.Close()

	for failures.Next() {
		var (
			f    model.Failure
			kind string
		)
		if err := failures.Scan(&f.URL, &kind, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Kind = crawler.Kind(kind)
		report.Failures = append(report.Failures, f)
	}
	return report, failures.Err()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
