package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/dhtcrawler/internal/model"
)

// MarkdownWriter outputs the history as a Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the history in Markdown format.
func (w *MarkdownWriter) Write(h *History) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, h)
	w.writeSummary(md, h)
	w.writeSessions(md, h)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report title and generation info.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, h *History) {
	md.H1("DHT Crawl History")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", h.GeneratedAt.Local().Format(timeLayout)},
			{"Sessions", strconv.Itoa(h.TotalSessions())},
			{"Nodes (listed sessions)", strconv.Itoa(h.TotalNodes())},
		},
	})
	md.PlainText("")
}

// writeSummary writes the outcome table and chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, h *History) {
	md.H2("Outcomes")
	md.PlainText("")

	rows := make([][]string, 0, len(outcomeOrder)+1)
	for _, o := range outcomeOrder {
		rows = append(rows, []string{o.String(), strconv.Itoa(h.Outcomes[o])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(h.TotalSessions()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Sessions"},
		Rows:   rows,
	})
	md.PlainText("")

	if h.TotalSessions() > 0 {
		w.writePieChart(md, h)
	}

	switch {
	case h.TotalSessions() == 0:
		md.Note("No crawl sessions have been recorded yet.")
	case h.Outcomes[model.OutcomeLimitReached] > 0:
		md.Tip("At least one session reached the node limit.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, h *History) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Session Outcomes"),
		piechart.WithShowData(true),
	)
	for _, o := range outcomeOrder {
		if n := h.Outcomes[o]; n > 0 {
			chart.LabelAndIntValue(o.String(), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeSessions writes one table row per listed session.
func (w *MarkdownWriter) writeSessions(md *markdown.Markdown, h *History) {
	md.H2("Sessions")
	md.PlainText("")

	if len(h.Sessions) == 0 {
		md.PlainText("No sessions recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(h.Sessions))
	for i, s := range h.Sessions {
		snapshot := orDash(s.SnapshotPath)
		if s.SnapshotPath != "" {
			snapshot = "`" + s.SnapshotPath + "`"
		}
		rows[i] = []string{
			s.StartedAt.Local().Format(timeLayout),
			formatDuration(s.Duration()),
			strconv.Itoa(s.Nodes),
			s.Outcome.String(),
			snapshot,
			orDash(s.Error),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Started", "Duration", "Nodes", "Outcome", "Snapshot", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [dhtcrawler](https://github.com/nao1215/dhtcrawler)*")
}
