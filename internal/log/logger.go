package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Extra slog levels used by the crawler.
const (
	// LevelFatal is used for errors that end the process.
	LevelFatal = slog.LevelError + 4
	// LevelTrace is used for per-query diagnostics.
	LevelTrace = slog.LevelDebug - 2
	// LevelVerbose is used for one line per discovered node.
	LevelVerbose = slog.LevelDebug - 4
)

// levelOff is above every level the crawler logs at.
const levelOff = LevelFatal + 4

// levelNames renders the extra levels by name.
var levelNames = map[slog.Level]string{
	LevelFatal:   "FATAL",
	LevelTrace:   "TRACE",
	LevelVerbose: "VERBOSE",
}

// Level converts a 0-7 verbosity into the minimum slog level to emit.
// Values above 7 are treated as 7; values below 1 silence the logger.
func Level(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return levelOff
	case verbosity == 1:
		return LevelFatal
	case verbosity == 2:
		return slog.LevelError
	case verbosity == 3:
		return slog.LevelWarn
	case verbosity == 4:
		return slog.LevelInfo
	case verbosity == 5:
		return slog.LevelDebug
	case verbosity == 6:
		return LevelTrace
	default:
		return LevelVerbose
	}
}

// replaceLevel renders the crawler's extra levels by name.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	if name, ok := levelNames[level]; ok {
		a.Value = slog.StringValue(name)
	}
	return a
}

// handlerOptions returns the slog options for the given verbosity.
func handlerOptions(verbosity int) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       Level(verbosity),
		ReplaceAttr: replaceLevel,
	}
}

// New creates a text logger writing to w at the given 0-7 verbosity.
func New(w io.Writer, verbosity int) *slog.Logger {
	if verbosity <= 0 {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, handlerOptions(verbosity)))
}

// NewJSON creates a JSON logger writing to w at the given 0-7 verbosity.
// Useful when logs are shipped to an aggregator.
func NewJSON(w io.Writer, verbosity int) *slog.Logger {
	if verbosity <= 0 {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewJSONHandler(w, handlerOptions(verbosity)))
}

// OpenFile opens path for appending log output, creating missing
// directories. The caller closes the returned file.
func OpenFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // path comes from the config file
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Fatal logs msg at LevelFatal. It does not exit; the caller decides.
func Fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFatal, msg, args...)
}
