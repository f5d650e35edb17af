package report

import (
	"io"
	"net"
	"strconv"

	"github.com/nao1215/netprobe/internal/model"
)

// Writer defines the interface for report output.
// Implementations write status reports in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.StatusReport) (int, error)
}

// Format names accepted by NewWriter.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// NewWriter returns the writer for format. Unknown formats fall back to
// text, and ok is false.
func NewWriter(format string, output io.Writer) (w Writer, ok bool) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), true
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), true
	case FormatText, "":
		return NewSimpleWriter(output), true
	default:
		return NewSimpleWriter(output), false
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.StatusReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
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

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// roundTripText formats the round trip of e, or "-" for failed runs.
func roundTripText(e model.ProbeEntry) string {
	if !e.HasRoundTrip {
		return "-"
	}
	return e.RoundTrip.String()
}

// target formats the address and explicit port of e.
func target(e model.ProbeEntry) string {
	if e.Port == 0 {
		return e.Address
	}
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}
