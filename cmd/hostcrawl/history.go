package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/hostcrawl/internal/config"
	"github.com/nao1215/hostcrawl/internal/database"
	"github.com/nao1215/hostcrawl/internal/report"
	"github.com/spf13/cobra"
)

// errNoHistory is returned when a specific crawl is requested but nothing
// has been recorded yet.
var errNoHistory = errors.New("no crawl history recorded yet")

// historyOptions holds the flags of the history command.
type historyOptions struct {
	dbDir     string
	id        int64
	latest    bool
	listSeeds bool
	delete    bool
	json      bool
	markdown  bool
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed]",
		Short: "Show previous crawls from the history database",
		Long: `History lists the crawls stored in the history database, newest first.

With a seed only the crawls of that seed are listed. Use --id to print the
full report of one crawl, or --latest to print the newest report of a seed.

Examples:
  # List every recorded crawl
  hostcrawl history

  # List the crawls of one seed
  hostcrawl history example.com

  # Print the newest report of a seed as Markdown
  hostcrawl history --latest -m example.com

  # Print and then delete crawl 12
  hostcrawl history --id 12
  hostcrawl history --id 12 --delete

  # List every seed that was ever crawled
  hostcrawl history --list-seeds`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("id", 0, "Show the full report of the crawl with this ID")
	cmd.Flags().Bool("latest", false, "Show the full report of the seed's newest crawl")
	cmd.Flags().Bool("list-seeds", false, "List every seed with recorded crawls")
	cmd.Flags().Bool("delete", false, "Delete the crawl given with --id")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().String("db", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// getHistoryOptions reads the history flags.
func getHistoryOptions(cmd *cobra.Command) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()

	if opts.dbDir, err = flags.GetString("db"); err != nil {
		return opts, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	if opts.id, err = flags.GetInt64("id"); err != nil {
		return opts, err
	}
	if opts.latest, err = flags.GetBool("latest"); err != nil {
		return opts, err
	}
	if opts.listSeeds, err = flags.GetBool("list-seeds"); err != nil {
		return opts, err
	}
	if opts.delete, err = flags.GetBool("delete"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}

	switch {
	case opts.json && opts.markdown:
		return opts, config.ErrConflictingReportFormats
	case opts.delete && opts.id == 0:
		return opts, errors.New("--delete requires --id")
	case opts.id < 0:
		return opts, fmt.Errorf("invalid crawl ID: %d", opts.id)
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := getHistoryOptions(cmd)
	if err != nil {
		return err
	}

	var seed string
	if len(args) == 1 {
		if seed, err = config.NormalizeSeed(args[0]); err != nil {
			return err
		}
	}
	if opts.latest && seed == "" {
		return errors.New("--latest requires a seed")
	}

	out := cmd.OutOrStdout()

	// Reading history must not create an empty database.
	if _, err := os.Stat(filepath.Join(opts.dbDir, database.DBFileName)); errors.Is(err, os.ErrNotExist) {
		if opts.id != 0 || opts.latest {
			return errNoHistory
		}
		if opts.listSeeds {
			return writeSeeds(out, nil, opts.json)
		}
		_, err := newHistoryWriter(opts, out).WriteSummaries(nil)
		return err
	}

	dbOpts := database.DefaultOptions()
	dbOpts.CreateIfNotExists = false
	db, err := database.Open(opts.dbDir, dbOpts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case opts.listSeeds:
		seeds, err := db.ListSeeds(ctx)
		if err != nil {
			return err
		}
		return writeSeeds(out, seeds, opts.json)

	case opts.delete:
		deleted, err := db.DeleteRun(ctx, opts.id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("crawl %d not found", opts.id)
		}
		fmt.Fprintf(out, "Deleted crawl %d\n", opts.id)
		return nil

	case opts.id != 0:
		r, err := db.GetReport(ctx, opts.id)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("crawl %d not found", opts.id)
		}
		_, err = newHistoryWriter(opts, out).Write(r)
		return err

	case opts.latest:
		r, err := db.LatestReport(ctx, seed)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("no crawl recorded for %s", seed)
		}
		_, err = newHistoryWriter(opts, out).Write(r)
		return err

	default:
		runs, err := db.ListRuns(ctx, seed)
		if err != nil {
			return err
		}
		_, err = newHistoryWriter(opts, out).WriteSummaries(runs)
		return err
	}
}

// newHistoryWriter returns the report writer for the selected format.
func newHistoryWriter(opts historyOptions, out io.Writer) report.Writer {
	cfg := config.NewConfig()
	cfg.JSONReport = opts.json
	cfg.MarkdownReport = opts.markdown
	cfg.Verbose = true
	return newReportWriter(cfg, out)
}

// writeSeeds prints seeds one per line, or as a JSON array.
func writeSeeds(out io.Writer, seeds []string, asJSON bool) error {
	if asJSON {
		if seeds == nil {
			seeds = []string{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(seeds)
	}
	if len(seeds) == 0 {
		_, err := fmt.Fprintln(out, "No crawls recorded.")
		return err
	}
	for _, seed := range seeds {
		if _, err := fmt.Fprintln(out, seed); err != nil {
			return err
		}
	}
	return nil
}
