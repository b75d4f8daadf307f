package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/nao1215/dhtcrawler/internal/config"
	"github.com/nao1215/dhtcrawler/internal/database"
	"github.com/nao1215/dhtcrawler/internal/report"
)

// defaultHistoryLimit is how many sessions the history command lists.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past crawl sessions",
		Long: `History lists recent crawl sessions from the history database: when they
ran, how many nodes they found, why they stopped, and where their snapshot
was written.

The database is looked up in history_dir of the configuration file given
with -c, or in the XDG data directory.

Examples:
  # Show the last 20 sessions
  dhtcrawler history

  # Show every session as JSON
  dhtcrawler history -n 0 --json

  # Write a Markdown report
  dhtcrawler history --markdown -o history.md`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file path")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of sessions to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().BoolP("paths", "p", false, "Show snapshot paths in text output")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	asMarkdown, _ := cmd.Flags().GetBool("markdown")
	showPaths, _ := cmd.Flags().GetBool("paths")
	outputPath, _ := cmd.Flags().GetString("output")

	cmd.SilenceUsage = true

	dir, err := historyDir(configPath)
	if err != nil {
		return err
	}

	db, err := database.Open(dir, database.Options{EnableWAL: true})
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no crawl history in %s (run the crawler first)", dir)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	sessions, err := db.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	outcomes, err := db.OutcomeCounts(ctx)
	if err != nil {
		return err
	}
	h := report.NewHistory(time.Now(), outcomes, sessions)

	render := func(out io.Writer) error {
		var w report.Writer
		switch {
		case asJSON:
			w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
		case asMarkdown:
			w = report.NewMarkdownWriter(out)
		default:
			w = report.NewSimpleWriter(out, report.WithPaths(showPaths))
		}
		if _, err := w.Write(h); err != nil {
			return fmt.Errorf("failed to write history: %w", err)
		}
		return nil
	}

	if outputPath == "" {
		return render(cmd.OutOrStdout())
	}

	f, err := createOutputFile(outputPath)
	if err != nil {
		return err
	}
	return writeAndClose(f, render)
}

// writeAndClose runs write on wc and closes it. A close failure is reported
// like a write failure, since buffered output may be lost.
func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	err := write(wc)
	if cerr := wc.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close output file: %w", cerr))
	}
	return err
}

// historyDir returns the history database directory: history_dir from the
// configuration file if one is given, otherwise the XDG data directory.
func historyDir(configPath string) (string, error) {
	if configPath == "" {
		return config.XDGDataDir(), nil
	}

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return "", err
	}
	if cfg.HistoryDir == "" {
		return "", errors.New("history is disabled in " + configPath + " (history_dir is empty)")
	}
	return cfg.HistoryDir, nil
}

// createOutputFile creates path and any missing parent directories.
func createOutputFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // user-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
