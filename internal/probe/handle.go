package probe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handle is the runtime state of one monitored entity: its Config, the
// Result of the latest run, run-state flags and the cancel function of the
// in-flight run.
//
// A Handle is owned by the scheduler collection. Protocol variants receive
// it through their Base and must not keep it after Connect returns.
type Handle struct {
	id     int
	config *Config

	running     atomic.Bool
	queued      atomic.Bool
	longRunning atomic.Bool
	enabled     atomic.Bool

	mu     sync.Mutex
	result Result
	cancel context.CancelFunc
}

// NewHandle creates an enabled Handle for the given settings.
func NewHandle(s Settings) *Handle {
	h := &Handle{
		id:     s.EntityID,
		config: NewConfig(s),
	}
	h.enabled.Store(true)
	return h
}

// ID returns the monitored entity identifier.
func (h *Handle) ID() int { return h.id }

// Config returns the guarded probe configuration.
func (h *Handle) Config() *Config { return h.config }

// IsRunning reports whether a run is in progress.
func (h *Handle) IsRunning() bool { return h.running.Load() }

// IsQueued reports whether the handle waits for the long-running gate.
func (h *Handle) IsQueued() bool { return h.queued.Load() }

// IsLongRunning reports whether runs go through the long-running gate.
func (h *Handle) IsLongRunning() bool { return h.longRunning.Load() }

// IsEnabled reports whether the handle takes part in poll cycles.
func (h *Handle) IsEnabled() bool { return h.enabled.Load() }

// SetLongRunning marks the handle as long running.
func (h *Handle) SetLongRunning(v bool) { h.longRunning.Store(v) }

// SetEnabled enables or disables the handle.
func (h *Handle) SetEnabled(v bool) {
	h.enabled.Store(v)
	h.config.Update(func(s *Settings) { s.Enabled = v })
}

// SetRunning forces the running flag. Run and the lifecycle methods manage
// it during normal operation.
func (h *Handle) SetRunning(v bool) { h.running.Store(v) }

// TryStart claims the handle for a run. It returns false when a run is
// already in progress.
func (h *Handle) TryStart() bool {
	return h.running.CompareAndSwap(false, true)
}

// TryQueue claims the queued flag. It returns false when another caller
// already waits for the gate on behalf of this handle.
func (h *Handle) TryQueue() bool {
	return h.queued.CompareAndSwap(false, true)
}

// Dequeue releases the queued flag.
func (h *Handle) Dequeue() { h.queued.Store(false) }

// Result returns a copy of the latest result.
func (h *Handle) Result() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Cancel aborts the in-flight run, if any.
func (h *Handle) Cancel() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *Handle) resetResult(r Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.result = r
}

func (h *Handle) updateResult(fn func(*Result)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.result)
}

func (h *Handle) setCancel(cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancel = cancel
}

func (h *Handle) releaseCancel() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
