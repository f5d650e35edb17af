package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/netprobe/internal/model"
	"github.com/nao1215/netprobe/internal/report"
)

// outputReport writes rep in format to path, or to stdout when path is
// empty. A report file is replaced on every call so that it always holds
// the latest status.
func outputReport(stdout io.Writer, format, path string, rep *model.StatusReport) error {
	if format == "" {
		return nil
	}

	output := stdout
	if path != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain internal host names that should only be
		// readable by the owner.
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	writer, ok := report.NewWriter(format, output)
	if !ok {
		return fmt.Errorf("unknown report format %q", format)
	}
	if _, err := writer.Write(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
