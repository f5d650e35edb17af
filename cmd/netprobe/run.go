package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/netprobe/internal/config"
	"github.com/nao1215/netprobe/internal/database"
	"github.com/nao1215/netprobe/internal/endpoint"
	"github.com/nao1215/netprobe/internal/model"
	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/report"
	"github.com/nao1215/netprobe/internal/scheduler"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the probes of the configuration file in poll cycles",
		Long: `Run loads the probe list from the configuration file and probes every
endpoint once per interval until interrupted.

Normal probes of a cycle run in parallel. Long-running probes (nmap, crawl,
keep-alive, BLE listen) run in the background behind a gate that caps how
many of them are active; a probe whose previous run is still going is
skipped. Every result is stored in the history database and a status
report is printed after each cycle.

Examples:
  # Probe until interrupted using .netprobe
  netprobe run

  # Run three cycles 30 seconds apart and write a Markdown report
  netprobe run -n 3 -i 30s -f markdown -o status.md

  # Reach .onion endpoints through an embedded Tor daemon
  netprobe run --embedded-tor

  # Use a custom configuration file and keep no history
  netprobe run -c probes.yaml --no-db`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	addSchedulerFlags(cmd)
	addProbeFlags(cmd)
	addReportFlags(cmd, report.FormatText)
	addDatabaseFlags(cmd)

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, true)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.File.Validate(); err != nil {
		return fmt.Errorf("configuration error in %s: %w", cfg.ConfigFilePath, err)
	}

	logger, closer, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signalContext(cmd)
	defer stop()

	return runMonitor(ctx, cfg, logger, cmd.OutOrStdout())
}

// signalContext returns the command context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runMonitor wires the probe environment, the collection and the
// scheduler and polls until ctx is cancelled or the cycle limit is reached.
func runMonitor(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	logger.Info("starting monitor",
		"config", cfg.ConfigFilePath,
		"probes", len(cfg.File.Probes),
		"interval", cfg.Interval,
		"concurrency", cfg.Concurrency,
		"maxQueue", cfg.MaxQueue,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.ResultDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	env, err := newEnvironment(ctx, cfg, logger, stdout)
	if err != nil {
		return err
	}
	defer env.close()

	m := newMonitor(cfg, db, env.factory.Registry(), logger, stdout)

	settings := cfg.File.ProbeSettings(cfg.Timeout)
	if err := m.restoreSiteHashes(ctx, settings); err != nil {
		return err
	}
	m.prune(ctx)

	collection := scheduler.NewCollection(env.factory,
		scheduler.WithMaxQueue(cfg.MaxQueue),
		scheduler.WithFilters(cfg.File.Filters),
		scheduler.WithCollectionLogger(logger),
	)
	collection.Load(settings, true, false)
	m.collection = collection

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.stop = cancel

	sched := scheduler.New(collection,
		scheduler.WithConcurrency(cfg.Concurrency),
		scheduler.WithStartRate(cfg.StartRate, cfg.StartBurst),
		scheduler.WithResultHandler(m.onResult),
		scheduler.WithCycleHandler(m.onCycle),
		scheduler.WithLogger(logger),
	)
	m.wait = sched.Wait

	err = sched.Run(runCtx, cfg.Interval)

	// Long-running probes see the cancelled context and stop early.
	sched.Wait()

	if errors.Is(err, context.Canceled) {
		if ctx.Err() != nil {
			logger.Info("received shutdown signal, stopped")
		}
		return nil
	}
	return err
}

// monitor persists results and reports the status after every cycle.
type monitor struct {
	cfg        *config.Config
	db         *database.ResultDB
	registry   *endpoint.Registry
	logger     *slog.Logger
	stdout     io.Writer
	collection *scheduler.Collection

	// stop ends the run once the cycle limit is reached; wait blocks
	// until background probes are done.
	stop func()
	wait func()

	cycles int

	mu          sync.Mutex
	savedHashes map[int]string
}

func newMonitor(cfg *config.Config, db *database.ResultDB, reg *endpoint.Registry, logger *slog.Logger, stdout io.Writer) *monitor {
	return &monitor{
		cfg:         cfg,
		db:          db,
		registry:    reg,
		logger:      logger,
		stdout:      stdout,
		stop:        func() {},
		wait:        func() {},
		savedHashes: make(map[int]string),
	}
}

// restoreSiteHashes seeds site hash probes with the content hash stored by
// an earlier run, so a restart does not report the first fetch as a change.
func (m *monitor) restoreSiteHashes(ctx context.Context, settings []probe.Settings) error {
	if m.db == nil {
		return nil
	}
	hashes, err := m.db.SiteHashes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load site hashes: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range settings {
		s := &settings[i]
		if s.EndpointType != endpoint.SiteHash {
			continue
		}
		if hash, ok := hashes[s.EntityID]; ok && hash != "" {
			s.SiteHash = hash
			m.savedHashes[s.EntityID] = hash
		}
	}
	return nil
}

// onResult stores one result and, for site hash probes, a changed hash.
func (m *monitor) onResult(ctx context.Context, nc probe.NetConnect, r probe.Result) {
	if m.db == nil {
		return
	}
	// Results of probes cut short by shutdown are still recorded.
	ctx = context.WithoutCancel(ctx)

	s := nc.Handle().Config().Snapshot()
	if err := m.db.SaveResult(ctx, s, r); err != nil {
		m.logger.Warn("failed to save result", "entity_id", s.EntityID, "error", err)
	}

	if s.EndpointType == endpoint.SiteHash && s.SiteHash != "" {
		m.saveSiteHash(ctx, s.EntityID, s.SiteHash)
	}
}

func (m *monitor) saveSiteHash(ctx context.Context, entityID int, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.savedHashes[entityID] == hash {
		return
	}
	if err := m.db.SaveSiteHash(ctx, entityID, hash); err != nil {
		m.logger.Warn("failed to save site hash", "entity_id", entityID, "error", err)
		return
	}
	m.savedHashes[entityID] = hash
}

// onCycle reports the status after a cycle and enforces the cycle limit.
func (m *monitor) onCycle(summary scheduler.CycleSummary) {
	m.cycles++
	last := m.cfg.Cycles > 0 && m.cycles >= m.cfg.Cycles
	if last {
		// The final report includes the long-running probes of this cycle.
		m.wait()
	}

	if err := outputReport(m.stdout, m.cfg.ReportFormat, m.cfg.ReportFile, m.buildReport()); err != nil {
		m.logger.Error("report failed", "cycle_id", summary.CycleID, "error", err)
	}
	m.prune(context.Background())

	if last {
		m.logger.Info("cycle limit reached", "cycles", m.cycles)
		m.stop()
	}
}

// buildReport collects the latest result of every enabled probe.
func (m *monitor) buildReport() *model.StatusReport {
	rep := model.NewStatusReport(m.registry, time.Now())
	if m.collection == nil {
		return rep
	}
	for _, nc := range m.collection.All() {
		h := nc.Handle()
		if !h.IsEnabled() {
			continue
		}
		rep.Add(h.Config().Snapshot(), h.Result())
	}
	return rep
}

// prune deletes stored results older than the retention period.
func (m *monitor) prune(ctx context.Context) {
	if m.db == nil || m.cfg.Retention <= 0 {
		return
	}
	n, err := m.db.PruneBefore(ctx, time.Now().Add(-m.cfg.Retention))
	if err != nil {
		m.logger.Warn("failed to prune results", "error", err)
		return
	}
	if n > 0 {
		m.logger.Debug("pruned old results", "rows", n)
	}
}
