package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/netprobe/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for status pages and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, including mermaid charts and GitHub-flavored alerts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.StatusReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeProbes(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.StatusReport) {
	md.H1("Netprobe Status Report")
	md.PlainText("")

	rows := [][]string{
		{"Generated", report.Generated.Format("2006-01-02 15:04:05 MST")},
		{"Probes", strconv.Itoa(report.Total)},
		{"Availability", fmt.Sprintf("%.1f%%", report.Availability())},
	}
	if !isNilUUID(report) {
		rows = append(rows, []string{"Cycle", "`" + report.CycleID.String() + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.StatusReport) {
	md.H2("Health Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllHealth)+1)
	for _, h := range model.AllHealth {
		rows = append(rows, []string{h.Emoji() + " " + h.String(), strconv.Itoa(report.Count(h))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(report.Total) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Health", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.HasEntries() {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for the health distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.StatusReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Probe Health Distribution"),
		piechart.WithShowData(true),
	)
	for _, h := range model.AllHealth {
		if n := report.Count(h); n > 0 {
			chart.LabelAndIntValue(h.String(), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.StatusReport) {
	switch {
	case report.Down > 0:
		md.Cautionf("%d of %d probe(s) are down.", report.Down, report.Total)
	case report.Count(model.HealthBad) > 0:
		md.Warningf("%d probe(s) respond slower than their poor band.", report.Count(model.HealthBad))
	case report.Count(model.HealthPoor) > 0:
		md.Importantf("%d probe(s) respond in their poor band.", report.Count(model.HealthPoor))
	case report.HasEntries():
		md.Tip("All probes are up.")
	default:
		md.Note("No probe results yet.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeProbes(md *markdown.Markdown, report *model.StatusReport) {
	md.H2("Probes")
	md.PlainText("")

	if !report.HasEntries() {
		md.PlainText("No probe results.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Entries))
	for i, e := range report.Entries {
		rows[i] = []string{
			strconv.Itoa(e.EntityID),
			e.FriendlyName,
			"`" + truncateString(target(e), 50) + "`",
			e.Health.Emoji() + " " + e.Status,
			roundTripText(e),
			e.EventTime.Format("2006-01-02 15:04:05"),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Type", "Target", "Status", "Round Trip", "Time"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, e := range report.DownEntries() {
		if e.Message != "" {
			md.Details(fmt.Sprintf("#%d %s", e.EntityID, e.FriendlyName), e.Message)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by netprobe*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
