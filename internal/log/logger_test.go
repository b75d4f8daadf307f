package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLevel tests the mapping from 0-7 verbosity to slog levels.
func TestLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbosity int
		want      slog.Level
	}{
		{verbosity: 1, want: LevelFatal},
		{verbosity: 2, want: slog.LevelError},
		{verbosity: 3, want: slog.LevelWarn},
		{verbosity: 4, want: slog.LevelInfo},
		{verbosity: 5, want: slog.LevelDebug},
		{verbosity: 6, want: LevelTrace},
		{verbosity: 7, want: LevelVerbose},
		{verbosity: 99, want: LevelVerbose},
	}

	for _, tt := range tests {
		if got := Level(tt.verbosity); got != tt.want {
			t.Errorf("Level(%d): expected %v, got %v", tt.verbosity, tt.want, got)
		}
	}

	if Level(0) <= LevelFatal {
		t.Error("verbosity 0 must silence fatal messages too")
	}
}

// TestNew tests logger construction and level filtering.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("info logger drops debug and keeps warnings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, 4)
		logger.Debug("hidden")
		logger.Warn("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("debug message should be filtered, got %q", out)
		}
		if !strings.Contains(out, "shown") {
			t.Errorf("warning should be logged, got %q", out)
		}
	})

	t.Run("verbose level is rendered by name", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, 7)
		logger.Log(context.Background(), LevelVerbose, "node discovered", "nodes", 1)

		if !strings.Contains(buf.String(), "level=VERBOSE") {
			t.Errorf("expected level=VERBOSE, got %q", buf.String())
		}
	})

	t.Run("verbosity 0 logs nothing", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, 0)
		Fatal(logger, "boom")
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})

	t.Run("json logger renders fatal by name", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		Fatal(NewJSON(&buf, 1), "boom")
		if !strings.Contains(buf.String(), `"level":"FATAL"`) {
			t.Errorf("expected FATAL level, got %q", buf.String())
		}
	})
}

// TestOpenFile tests log file creation.
func TestOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "crawler.log")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	New(f, 4).Info("hello")
	if err := f.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("expected log line in file, got %q", data)
	}
}
