package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/nao1215/netprobe/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display after every poll cycle.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so that output can be piped to files and log collectors.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether grades with no entries are shown.
	showEmpty bool

	// verbose adds the result message of healthy probes.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.StatusReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeEntries(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.StatusReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        NETPROBE STATUS REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Generated:    %s\n", report.Generated.Format("2006-01-02 15:04:05 MST"))
	if !isNilUUID(report) {
		fmt.Fprintf(sb, "Cycle:        %s\n", report.CycleID)
	}
	fmt.Fprintf(sb, "Availability: %.1f%%\n", report.Availability())
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.StatusReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  UP:        %d\n", report.Up)
	fmt.Fprintf(sb, "  DOWN:      %d\n", report.Down)
	sb.WriteString("\n")
	for _, h := range model.AllHealth {
		fmt.Fprintf(sb, "  %-10s %d\n", h.String()+":", report.Count(h))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:     %d probes\n", report.Total)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeEntries(sb *strings.Builder, report *model.StatusReport) {
	if !report.HasEntries() && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PROBES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	// Worst grade first so failures are at the top.
	for i := len(model.AllHealth) - 1; i >= 0; i-- {
		h := model.AllHealth[i]
		entries := report.EntriesByHealth(h)
		if len(entries) == 0 && !w.showEmpty {
			continue
		}
		w.writeEntriesForHealth(sb, h, entries)
	}
}

func (w *SimpleWriter) writeEntriesForHealth(sb *strings.Builder, h model.Health, entries []model.ProbeEntry) {
	fmt.Fprintf(sb, "[%s] %s\n", indicator(h), h.String())

	if len(entries) == 0 {
		sb.WriteString("  No probes\n\n")
		return
	}

	for _, e := range entries {
		fmt.Fprintf(sb, "  * #%d %s %s (%s)\n", e.EntityID, e.FriendlyName, target(e), e.Status)
		if e.HasRoundTrip {
			fmt.Fprintf(sb, "    Round trip: %s\n", roundTripText(e))
		}
		if e.Message != "" && (!e.IsUp || w.verbose) {
			fmt.Fprintf(sb, "    Message: %s\n", e.Message)
		}
	}
	sb.WriteString("\n")
}

// indicator returns a visual marker for the grade.
func indicator(h model.Health) string {
	switch h {
	case model.HealthDown:
		return "!!!"
	case model.HealthBad:
		return "!!"
	case model.HealthPoor:
		return "!"
	case model.HealthGood:
		return "+"
	case model.HealthExcellent:
		return "++"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by netprobe\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func isNilUUID(report *model.StatusReport) bool {
	return report.CycleID == uuid.Nil
}
