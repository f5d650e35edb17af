// Package report writes status reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown with a health pie chart for status pages
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
