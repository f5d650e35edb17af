package command

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Processor names used by the probe variants.
const (
	NameNmap         = "nmap"
	NameCrawl        = "crawl"
	NameBLEBroadcast = "blebroadcast"
	NameBLEListen    = "blelisten"
	NameKeepAlive    = "keepalive"
)

// ErrEmptyName is returned when registering a processor without a name.
var ErrEmptyName = errors.New("processor name is empty")

// Result is the outcome of one processor run.
type Result struct {
	Success bool
	Message string
}

// Processor executes one command. Implementations must be safe for
// concurrent use by different probes.
type Processor interface {
	Run(ctx context.Context, args string) Result
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, args string) Result

// Run implements Processor.
func (f ProcessorFunc) Run(ctx context.Context, args string) Result {
	return f(ctx, args)
}

// Provider resolves processors by name.
type Provider interface {
	GetProcessor(name string) (Processor, bool)
}

// Registry is a concurrency-safe Provider.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]Processor)}
}

// Register adds or replaces the processor for name. A nil processor
// removes the entry.
func (r *Registry) Register(name string, p Processor) error {
	if name == "" {
		return ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		delete(r.procs, name)
		return nil
	}
	r.procs[name] = p
	return nil
}

// GetProcessor implements Provider.
func (r *Registry) GetProcessor(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[name]
	return p, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
