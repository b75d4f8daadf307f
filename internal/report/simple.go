package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// timeLayout is how timestamps are shown in text and Markdown reports.
const timeLayout = "2006-01-02 15:04:05"

// SimpleWriter outputs the history as aligned plain text.
type SimpleWriter struct {
	baseWriter

	// showPaths adds the snapshot path column.
	showPaths bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithPaths adds the snapshot path of every session.
func WithPaths(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showPaths = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// Write outputs the history as text.
func (w *SimpleWriter) Write(h *History) (int, error) {
	cw := &countingWriter{w: w.output}

	fmt.Fprintf(cw, "Crawl history (%d sessions)\n", h.TotalSessions())
	for _, o := range outcomeOrder {
		fmt.Fprintf(cw, "  %-14s %d\n", o, h.Outcomes[o])
	}
	fmt.Fprintln(cw)

	if len(h.Sessions) == 0 {
		fmt.Fprintln(cw, "No sessions recorded.")
		return cw.n, nil
	}

	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	header := "STARTED\tDURATION\tNODES\tOUTCOME\tRUN"
	if w.showPaths {
		header += "\tSNAPSHOT"
	}
	fmt.Fprintln(tw, header)

	for _, s := range h.Sessions {
		line := s.StartedAt.Local().Format(timeLayout) + "\t" +
			formatDuration(s.Duration()) + "\t" +
			strconv.Itoa(s.Nodes) + "\t" +
			s.Outcome.String() + "\t" +
			shortRunID(s.RunID) + "/" + strconv.FormatUint(uint64(s.Index), 10)
		if w.showPaths {
			line += "\t" + orDash(s.SnapshotPath)
		}
		fmt.Fprintln(tw, line)
	}

	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// shortRunID returns the first block of a UUID run id.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return orDash(id)
}
