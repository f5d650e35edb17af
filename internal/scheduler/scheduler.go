package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/netprobe/internal/probe"
)

// DefaultConcurrency is the number of normal probes run at once.
const DefaultConcurrency = 16

// ResultHandler receives every finished probe result. It is called from
// the goroutine that ran the probe and must be safe for concurrent use.
type ResultHandler func(ctx context.Context, nc probe.NetConnect, r probe.Result)

// CycleSummary describes one poll cycle. Long-running probes finish in the
// background, so only their dispatch is counted here.
type CycleSummary struct {
	CycleID     uuid.UUID
	Started     time.Time
	Elapsed     time.Duration
	Ran         int
	Up          int
	Down        int
	Skipped     int
	LongRunning int
}

// Scheduler runs poll cycles over a Collection.
type Scheduler struct {
	collection  *Collection
	concurrency int
	limiter     *rate.Limiter
	onResult    ResultHandler
	onCycle     func(CycleSummary)
	logger      *slog.Logger

	background sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency caps the normal probes running at once.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStartRate limits how many probes start per second. A non-positive
// rate disables pacing.
func WithStartRate(perSecond float64, burst int) Option {
	return func(s *Scheduler) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithResultHandler sets the callback for finished probes.
func WithResultHandler(fn ResultHandler) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// WithCycleHandler sets a callback invoked by Run after every cycle.
func WithCycleHandler(fn func(CycleSummary)) Option {
	return func(s *Scheduler) { s.onCycle = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scheduler for c.
func New(c *Collection, opts ...Option) *Scheduler {
	s := &Scheduler{
		collection:  c,
		concurrency: DefaultConcurrency,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle runs one poll cycle and returns once every normal probe has
// finished. Long-running probes are dispatched to the gate and keep
// running after RunCycle returns; Wait blocks until they are done.
//
// Design decision: a failing probe is a result, not an error. The errgroup
// only carries cancellation, so one probe can never stop the others.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{CycleID: uuid.New(), Started: time.Now()}
	ctx = probe.WithCycle(ctx, summary.CycleID)

	normal := s.collection.GetNonLongRunningNetConnects()
	long := s.collection.GetLongRunningNetConnects()

	s.logger.Debug("cycle started",
		"cycle_id", summary.CycleID,
		"normal", len(normal),
		"long_running", len(long),
	)

	for _, nc := range long {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.collection.HandleLongRunningTask(ctx, nc, s.run)
		}()
	}
	summary.LongRunning = len(long)

	var ran, up, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, nc := range normal {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			r, ok := s.runResult(gctx, nc)
			if !ok {
				skipped.Add(1)
				return nil
			}
			ran.Add(1)
			if r.IsUp {
				up.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	s.collection.AdvanceFilters()

	summary.Ran = int(ran.Load())
	summary.Up = int(up.Load())
	summary.Down = summary.Ran - summary.Up
	summary.Skipped = int(skipped.Load())
	summary.Elapsed = time.Since(summary.Started)

	s.logger.Info("cycle complete",
		"cycle_id", summary.CycleID,
		"ran", summary.Ran,
		"up", summary.Up,
		"down", summary.Down,
		"skipped", summary.Skipped,
		"long_running", summary.LongRunning,
		"elapsed", summary.Elapsed,
	)
	return summary, err
}

func (s *Scheduler) run(ctx context.Context, nc probe.NetConnect) {
	s.runResult(ctx, nc)
}

// runResult runs nc once and reports the result when it ran.
func (s *Scheduler) runResult(ctx context.Context, nc probe.NetConnect) (probe.Result, bool) {
	r, ok := probe.Run(ctx, nc)
	if !ok {
		s.logger.Debug("probe still running, skipped", "entity_id", nc.Handle().ID())
		return r, false
	}
	if !r.IsUp {
		s.logger.Warn("probe down",
			"entity_id", r.EntityID,
			"status", r.Snapshot.Status,
			"message", r.Message,
		)
	}
	if s.onResult != nil {
		s.onResult(ctx, nc, r)
	}
	return r, true
}

// Run starts a cycle immediately and then once per interval until ctx is
// cancelled. A cycle still running when the interval elapses delays the
// next one. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := s.RunCycle(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("cycle ended early", "cycle_id", summary.CycleID, "error", err)
		}
		if s.onCycle != nil {
			s.onCycle(summary)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until every dispatched long-running probe has finished.
func (s *Scheduler) Wait() {
	s.background.Wait()
}
