package scheduler

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/netprobe/internal/probe"
)

// DefaultMaxQueue is the number of long-running probes allowed at once.
const DefaultMaxQueue = 4

// Builder creates the probe variant for a handle. *protocol.Factory
// satisfies it.
type Builder interface {
	NewFor(h *probe.Handle) probe.NetConnect
}

// Runner executes one probe. HandleLongRunningTask calls it inside the gate.
type Runner func(ctx context.Context, nc probe.NetConnect)

// Collection is the concurrent registry of probes keyed by entity ID.
type Collection struct {
	builder Builder
	gate    *semaphore.Weighted
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[int]probe.NetConnect
	filters []FilterStrategy
}

// CollectionOption configures a Collection.
type CollectionOption func(*collectionOptions)

type collectionOptions struct {
	maxQueue int
	filters  []FilterStrategy
	logger   *slog.Logger
}

// WithMaxQueue sets the capacity of the long-running gate.
func WithMaxQueue(n int) CollectionOption {
	return func(o *collectionOptions) {
		if n > 0 {
			o.maxQueue = n
		}
	}
}

// WithFilters sets the initial filter strategies.
func WithFilters(filters []FilterStrategy) CollectionOption {
	return func(o *collectionOptions) {
		o.filters = slices.Clone(filters)
	}
}

// WithCollectionLogger sets the logger.
func WithCollectionLogger(logger *slog.Logger) CollectionOption {
	return func(o *collectionOptions) {
		o.logger = logger
	}
}

// NewCollection creates an empty collection building variants with b.
func NewCollection(b Builder, opts ...CollectionOption) *Collection {
	o := collectionOptions{maxQueue: DefaultMaxQueue}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Collection{
		builder: b,
		gate:    semaphore.NewWeighted(int64(o.maxQueue)),
		logger:  o.logger,
		entries: make(map[int]probe.NetConnect),
		filters: o.filters,
	}
}

// Add inserts a probe for s, replacing any probe with the same entity ID.
// The new probe is always enabled.
func (c *Collection) Add(s probe.Settings) probe.NetConnect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(s)
}

func (c *Collection) addLocked(s probe.Settings) probe.NetConnect {
	if old, ok := c.entries[s.EntityID]; ok {
		retire(old)
	}
	s.Enabled = true
	nc := c.builder.NewFor(probe.NewHandle(s))
	nc.Handle().SetEnabled(true)
	c.entries[s.EntityID] = nc

	c.logger.Debug("probe added", "entity_id", s.EntityID, "type", s.EndpointType)
	return nc
}

// UpdateOrAdd updates the probe for s in place when the endpoint type is
// unchanged, keeping the handle and its last result. A changed type swaps
// the variant through RemoveAndAdd, and an unknown ID is added.
func (c *Collection) UpdateOrAdd(s probe.Settings) probe.NetConnect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateOrAddLocked(s)
}

func (c *Collection) updateOrAddLocked(s probe.Settings) probe.NetConnect {
	existing, ok := c.entries[s.EntityID]
	if !ok {
		return c.addLocked(s)
	}

	h := existing.Handle()
	current := h.Config().Snapshot()
	if current.EndpointType != s.EndpointType {
		return c.removeAndAddLocked(s)
	}

	if s.SiteHash == "" {
		s.SiteHash = current.SiteHash
	}
	s.Enabled = true
	h.Config().Replace(s)
	h.SetEnabled(true)

	c.logger.Debug("probe updated", "entity_id", s.EntityID, "type", s.EndpointType)
	return existing
}

// RemoveAndAdd disables and drops the current probe for s.EntityID, then
// adds a fresh one. It is used when the endpoint type changes.
func (c *Collection) RemoveAndAdd(s probe.Settings) probe.NetConnect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeAndAddLocked(s)
}

func (c *Collection) removeAndAddLocked(s probe.Settings) probe.NetConnect {
	if old, ok := c.entries[s.EntityID]; ok {
		retire(old)
		delete(c.entries, s.EntityID)
	}
	return c.addLocked(s)
}

// Remove drops the probe with the given ID and reports whether it existed.
func (c *Collection) Remove(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.entries[id]
	if ok {
		retire(old)
		delete(c.entries, id)
	}
	return ok
}

// DisableAll disables every probe. Disabled probes stay in the collection
// but are excluded from every working set.
func (c *Collection) DisableAll() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, nc := range c.entries {
		nc.Handle().SetEnabled(false)
	}
}

// Load applies a list of settings. isInit clears the collection first and
// rebuilds it; otherwise entries are updated in place. isDisable disables
// every current probe before the list is applied, so probes missing from
// the list end up disabled. Settings with Enabled unset are loaded and then
// disabled.
//
// Enabled is false in a zero probe.Settings, so callers building settings
// in code must set Enabled: true or the probe loads disabled. Settings
// from the configuration file default to enabled.
func (c *Collection) Load(entries []probe.Settings, isInit, isDisable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isInit {
		for id, nc := range c.entries {
			retire(nc)
			delete(c.entries, id)
		}
	}
	if isDisable {
		for _, nc := range c.entries {
			nc.Handle().SetEnabled(false)
		}
	}

	for _, s := range entries {
		var nc probe.NetConnect
		if isInit {
			nc = c.addLocked(s)
		} else {
			nc = c.updateOrAddLocked(s)
		}
		if !s.Enabled {
			nc.Handle().SetEnabled(false)
		}
	}

	c.logger.Info("probes loaded", "count", len(entries), "init", isInit, "total", len(c.entries))
}

// Get returns the probe for id.
func (c *Collection) Get(id int) (probe.NetConnect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nc, ok := c.entries[id]
	return nc, ok
}

// Len returns the number of probes, enabled or not.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// All returns every probe ordered by entity ID.
func (c *Collection) All() []probe.NetConnect {
	return c.collect(func(probe.NetConnect) bool { return true })
}

// GetFilteredNetConnects returns the enabled probes that pass every filter
// strategy matching their endpoint type, ordered by entity ID.
func (c *Collection) GetFilteredNetConnects() []probe.NetConnect {
	return c.collect(c.includeLocked)
}

// GetNonLongRunningNetConnects is GetFilteredNetConnects without the
// long-running probes, which go through HandleLongRunningTask instead.
func (c *Collection) GetNonLongRunningNetConnects() []probe.NetConnect {
	return c.collect(func(nc probe.NetConnect) bool {
		return !nc.Handle().IsLongRunning() && c.includeLocked(nc)
	})
}

// GetLongRunningNetConnects returns the filtered long-running probes.
func (c *Collection) GetLongRunningNetConnects() []probe.NetConnect {
	return c.collect(func(nc probe.NetConnect) bool {
		return nc.Handle().IsLongRunning() && c.includeLocked(nc)
	})
}

// collect returns the probes matching keep, ordered by ID. keep runs under
// the read lock.
func (c *Collection) collect(keep func(probe.NetConnect) bool) []probe.NetConnect {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]probe.NetConnect, 0, len(c.entries))
	for _, nc := range c.entries {
		if keep(nc) {
			out = append(out, nc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle().ID() < out[j].Handle().ID() })
	return out
}

func (c *Collection) includeLocked(nc probe.NetConnect) bool {
	h := nc.Handle()
	if !h.IsEnabled() {
		return false
	}
	for _, f := range c.filters {
		if !f.Include(h) {
			return false
		}
	}
	return true
}

// HandleLongRunningTask runs nc through the long-running gate. It returns
// false without calling runner when the probe is already running or
// already waiting for the gate, or when ctx ends before a slot frees up.
// The slot is released whatever the runner does.
func (c *Collection) HandleLongRunningTask(ctx context.Context, nc probe.NetConnect, runner Runner) bool {
	h := nc.Handle()
	if h.IsRunning() || !h.TryQueue() {
		return false
	}
	defer h.Dequeue()

	if err := c.gate.Acquire(ctx, 1); err != nil {
		c.logger.Debug("long-running probe not started", "entity_id", h.ID(), "error", err)
		return false
	}
	defer c.gate.Release(1)

	runner(ctx, nc)
	return true
}

// SetFilters replaces the filter strategies.
func (c *Collection) SetFilters(filters []FilterStrategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = slices.Clone(filters)
}

// Filters returns a copy of the current filter strategies.
func (c *Collection) Filters() []FilterStrategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.filters)
}

// AdvanceFilters moves every strategy to its next cycle.
func (c *Collection) AdvanceFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.filters {
		c.filters[i] = c.filters[i].Advance()
	}
}

// retire disables a probe leaving the collection and aborts its run.
func retire(nc probe.NetConnect) {
	h := nc.Handle()
	h.SetEnabled(false)
	h.Cancel()
}
