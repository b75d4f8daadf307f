package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// exitError ends the process with code without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// NewRootCmd creates the root command. Running it without a subcommand
// starts the crawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dhtcrawler",
		Short: "Crawler for the BitTorrent mainline DHT",
		Long: `dhtcrawler discovers nodes of the BitTorrent mainline DHT.

It runs a bounded number of crawl sessions side by side. Each session joins
the DHT with a new identity through the configured bootstrap nodes, keeps
asking every node it learns about for more nodes, and stops once nothing new
turns up. The nodes a session found are written to
<data_dir>/YYYY-MM-DD/HHMMSS.lst as "id, ip, location" lines.

The process exits with status 0 only when a session reaches the node limit
(-l or node_limit). Any other shutdown, including SIGINT and SIGTERM, exits
with status 1.

Examples:
  # Create a configuration file
  dhtcrawler init

  # Crawl until interrupted
  dhtcrawler --config dhtcrawler.yaml

  # Stop once a session has found 10000 nodes, logging every node
  dhtcrawler --config dhtcrawler.yaml -l 10000 --verbose 7`,
		Version:       getVersion(),
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runCrawlCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file path (required)")
	cmd.Flags().IntP("verbose", "v", 0, "Log verbosity from 1 (fatal) to 7 (every node); overrides log_level")
	cmd.Flags().IntP("limit", "l", 0, "Stop after a session discovers this many nodes; overrides node_limit")
	cmd.Flags().Bool("debug", false, "Wait for a debugger to attach before crawling")
	_ = cmd.MarkFlagRequired("config")

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with its status.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Stderr))
}

// run executes cmd and returns the process exit code.
func run(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	fmt.Fprintln(stderr, "Error:", err)
	return 1
}
