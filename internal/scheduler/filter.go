package scheduler

import (
	"strings"

	"github.com/nao1215/netprobe/internal/probe"
)

// FilterStrategy spreads probes of one endpoint type across Skip cycles.
// A probe passes when its entity ID modulo Skip equals Start. Advance
// moves Start after each cycle so every probe runs once every Skip cycles.
type FilterStrategy struct {
	// Name is the endpoint type the strategy applies to.
	Name  string `yaml:"name"`
	Skip  int    `yaml:"skip"`
	Start int    `yaml:"start"`
}

// Applies reports whether the strategy targets probes of endpointType.
func (f FilterStrategy) Applies(endpointType string) bool {
	return strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(endpointType))
}

// Include reports whether h passes the strategy. Probes of other endpoint
// types always pass.
func (f FilterStrategy) Include(h *probe.Handle) bool {
	if !f.Applies(h.Config().Snapshot().EndpointType) || f.Skip <= 1 {
		return true
	}
	return mod(h.ID(), f.Skip) == mod(f.Start, f.Skip)
}

// Advance returns the strategy for the next cycle.
func (f FilterStrategy) Advance() FilterStrategy {
	if f.Skip > 1 {
		f.Start = mod(f.Start+1, f.Skip)
	}
	return f
}

// mod is the non-negative remainder, so negative IDs still land in a slot.
func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
