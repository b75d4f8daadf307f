package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/dhtcrawler/internal/config"
	"github.com/nao1215/dhtcrawler/internal/crawler"
	"github.com/nao1215/dhtcrawler/internal/database"
	"github.com/nao1215/dhtcrawler/internal/dht"
	"github.com/nao1215/dhtcrawler/internal/geo"
	dlog "github.com/nao1215/dhtcrawler/internal/log"
	"github.com/nao1215/dhtcrawler/internal/telemetry"
)

// shutdownTimeout bounds how long the metrics server takes to stop.
const shutdownTimeout = 5 * time.Second

// crawlOptions holds the root command's flags.
type crawlOptions struct {
	configPath string
	overrides  config.Overrides
	debug      bool
}

// runCrawlCmd executes the root command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	opts, err := getCrawlOptions(cmd)
	if err != nil {
		return err
	}

	// Flags parsed fine; from here on errors are not usage errors.
	cmd.SilenceUsage = true

	cfg, err := loadConfig(opts.configPath, opts.overrides)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if opts.debug {
		waitForDebugger(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := runCrawl(ctx, cfg, logger)
	if err != nil {
		dlog.Fatal(logger, "crawler failed", "error", err)
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// getCrawlOptions reads the root command's flags.
func getCrawlOptions(cmd *cobra.Command) (crawlOptions, error) {
	var opts crawlOptions
	var err error

	if opts.configPath, err = cmd.Flags().GetString("config"); err != nil {
		return opts, err
	}
	if opts.overrides.LogLevel, err = cmd.Flags().GetInt("verbose"); err != nil {
		return opts, err
	}
	if opts.overrides.NodeLimit, err = cmd.Flags().GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.debug, err = cmd.Flags().GetBool("debug"); err != nil {
		return opts, err
	}
	if opts.overrides.LogLevel < 0 {
		return opts, fmt.Errorf("invalid --verbose %d: %w", opts.overrides.LogLevel, config.ErrInvalidLogLevel)
	}
	if opts.overrides.NodeLimit < 0 {
		return opts, fmt.Errorf("invalid -l %d: %w", opts.overrides.NodeLimit, config.ErrInvalidNodeLimit)
	}

	return opts, nil
}

// loadConfig reads the configuration file, applies command line overrides
// and validates the result.
func loadConfig(path string, overrides config.Overrides) (*config.Config, error) {
	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if overrides.LogLevel > config.MaxLogLevel {
		overrides.LogLevel = config.MaxLogLevel
	}
	if err := cfg.Apply(overrides); err != nil {
		return nil, fmt.Errorf("failed to apply command line options: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error in %s: %w", path, err)
	}
	return cfg, nil
}

// setupLogger creates the process logger from the configuration.
// The returned func closes the log file, if any.
func setupLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	newLogger := dlog.New
	if cfg.LogFormat == config.LogFormatJSON {
		newLogger = dlog.NewJSON
	}

	if cfg.LogFile == "" {
		return newLogger(stderr, cfg.LogLevel), func() {}, nil
	}

	f, err := dlog.OpenFile(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return newLogger(f, cfg.LogLevel), func() { _ = f.Close() }, nil
}

// waitForDebugger blocks until a line is read from in.
func waitForDebugger(in io.Reader, out io.Writer) {
	fmt.Fprintf(out, "Waiting for debugger to attach to pid %d. Press Enter to continue.\n", os.Getpid())
	_, _ = bufio.NewReader(in).ReadString('\n')
}

// runCrawl sets up the crawler, runs it until it is interrupted or a
// session reaches the node limit, and waits for every session to finish.
// It returns the process exit code.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) (int, error) {
	runID := uuid.NewString()
	telemetry.SetBuildInfo(getVersion())

	logger.Info("starting crawler",
		"run", runID,
		"version", getVersion(),
		"max_crawlers", cfg.MaxCrawlers,
		"node_limit", cfg.NodeLimit,
		"data_dir", cfg.DataDir,
	)

	var closers []func() error
	defer func() {
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
		if err != nil {
			logger.Warn("failed to release resources", "error", err)
		}
	}()

	opts := []crawler.Option{
		crawler.WithLogger(logger),
		crawler.WithRunID(runID),
	}

	locator, err := geo.Open(cfg.Database)
	switch {
	case errors.Is(err, geo.ErrNoDatabase):
		logger.Info("location lookup disabled")
	case err != nil:
		logger.Warn("location lookup disabled", "error", err)
	default:
		closers = append(closers, locator.Close)
		opts = append(opts, crawler.WithLocator(locator))
	}

	if cfg.HistoryDir != "" {
		history, err := database.Open(cfg.HistoryDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("session history disabled", "error", err)
		} else {
			closers = append(closers, history.Close)
			opts = append(opts, crawler.WithRecorder(history))
			logger.Info("recording session history", "path", history.Path())
		}
	}

	controller, err := crawler.NewController(cfg, newEngineFactory(cfg, logger), opts...)
	if err != nil {
		return 1, err
	}

	var srv *http.Server
	var ln net.Listener
	if cfg.MetricsAddr != "" {
		ln, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return 1, fmt.Errorf("failed to listen for metrics on %s: %w", cfg.MetricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info("serving metrics", "addr", ln.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	supervised := make(chan struct{})

	g.Go(func() error {
		defer close(supervised)
		return supervise(gctx, controller, cfg, clock.New(), logger)
	})

	if srv != nil {
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-supervised
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := g.Wait(); err != nil {
		return 1, err
	}

	state := controller.State()
	logger.Info("crawler stopped", "interrupt", state.Interrupt(), "exit_code", state.ExitCode())
	return state.ExitCode(), nil
}

// newEngineFactory returns a factory creating one DHT engine per session.
func newEngineFactory(cfg *config.Config, logger *slog.Logger) crawler.EngineFactory {
	dhtLogger := logger.With("component", "dht")
	return func() (crawler.Engine, error) {
		e, err := dht.New(dht.WithBind(cfg.Bind), dht.WithLogger(dhtLogger))
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// supervise drives the controller until an interrupt is raised, then
// waits for every running session to finish. Cancelling ctx raises a
// graceful stop. After a failed admission it backs off for RetryInterval
// instead of InspectInterval.
func supervise(ctx context.Context, c *crawler.Controller, cfg *config.Config, clk clock.Clock, logger *slog.Logger) error {
	state := c.State()

	for !state.Interrupted() {
		wait := cfg.InspectInterval
		admission, err := c.Tick()
		switch {
		case err != nil:
			logger.Error("failed to start crawl session", "error", err, "retry_in", cfg.RetryInterval)
			wait = cfg.RetryInterval
		case admission == crawler.AdmissionStarted:
			logger.Debug("crawl session started", "running", state.Running())
		}

		timer := clk.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("received shutdown signal, stopping sessions...")
			c.Stop()
		case <-timer.C:
		}
	}

	logger.Info("waiting for running sessions", "running", state.Running(), "interrupt", state.Interrupt())
	return c.Drain(context.Background())
}
