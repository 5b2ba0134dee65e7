package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for hostcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hostcrawl",
		Short: "Depth-bounded concurrent web crawler with per-host limits",
		Long: `hostcrawl crawls web sites to a fixed link depth.

Fetches run on a shared worker pool, link extraction on a second one, and no
host ever has more than a fixed number of requests in flight. Onion services
are crawled through Tor; an embedded Tor daemon is started automatically
unless --tor-proxy points at an existing one.

Every crawl is stored in a local history database (see "hostcrawl history").`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
