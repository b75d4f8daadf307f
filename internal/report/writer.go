package report

import (
	"io"
	"time"

	"github.com/nao1215/dhtcrawler/internal/model"
)

// History is what the report writers render: a window of recent sessions
// and the outcome totals of the whole database.
type History struct {
	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Outcomes counts every stored session by outcome.
	Outcomes map[model.Outcome]int `json:"outcomes"`

	// Sessions are the most recent sessions, newest first.
	Sessions []model.SessionRecord `json:"sessions"`
}

// NewHistory builds a History stamped with now.
func NewHistory(now time.Time, outcomes map[model.Outcome]int, sessions []model.SessionRecord) *History {
	if outcomes == nil {
		outcomes = make(map[model.Outcome]int)
	}
	return &History{
		GeneratedAt: now,
		Outcomes:    outcomes,
		Sessions:    sessions,
	}
}

// TotalSessions returns the number of sessions across all outcomes.
func (h *History) TotalSessions() int {
	total := 0
	for _, n := range h.Outcomes {
		total += n
	}
	return total
}

// TotalNodes returns the number of nodes found by the listed sessions.
func (h *History) TotalNodes() int {
	total := 0
	for _, s := range h.Sessions {
		total += s.Nodes
	}
	return total
}

// outcomeOrder is the order outcomes are listed in.
var outcomeOrder = []model.Outcome{
	model.OutcomeLimitReached,
	model.OutcomeStalled,
	model.OutcomeInterrupted,
}

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the history. It returns the number of bytes written.
	Write(h *History) (int, error)
}

// MultiWriter writes to multiple Writers in turn.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the history to all configured Writers.
// It returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(h *History) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(h)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// formatDuration renders a session duration rounded to the second.
func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

// orDash returns "-" for empty strings.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
