package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/netprobe/internal/database"
	"github.com/nao1215/netprobe/internal/model"
	"github.com/nao1215/netprobe/internal/report"
)

// defaultHistoryLimit is the number of results shown for one probe.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored probe results",
		Long: `History prints results stored by "netprobe run".

Without --id it shows the latest result of every probe. With --id it shows
the most recent results of that probe, newest first.

Examples:
  # Latest result of every probe
  netprobe history

  # Last 50 results of probe 3 as Markdown
  netprobe history --id 3 -l 50 -f markdown`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int("id", 0, "Show the results of this probe only")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of results shown with --id")
	cmd.Flags().String("db-dir", "", "Directory of the result history (default: XDG data directory)")
	addReportFlags(cmd, report.FormatText)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetInt("id")
	if err != nil {
		return err
	}

	// History never creates a database.
	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no history found in %s (run \"netprobe run\" first)", cfg.DBDir)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	var records []database.ResultRecord
	if cmd.Flags().Changed("id") {
		records, err = db.RecentResults(ctx, id, limit)
	} else {
		records, err = db.LatestResults(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	rep := model.NewStatusReport(nil, time.Now())
	for _, rec := range records {
		rep.Add(rec.Probe())
	}
	return outputReport(cmd.OutOrStdout(), cfg.ReportFormat, cfg.ReportFile, rep)
}
