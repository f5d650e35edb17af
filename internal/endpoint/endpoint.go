// Package endpoint holds the read-only metadata of every endpoint type:
// friendly names, descriptions, processing-time estimates, response-time
// thresholds, and the scheduling constants (long-running, timeout extension)
// the probe core needs.
package endpoint

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Endpoint type identifiers.
const (
	ICMP               = "icmp"
	HTTP               = "http"
	HTTPS              = "https"
	HTTPHTML           = "httphtml"
	HTTPFull           = "httpfull"
	DNS                = "dns"
	SMTP               = "smtp"
	RawConnect         = "rawconnect"
	Nmap               = "nmap"
	NmapVuln           = "nmapvuln"
	CrawlSite          = "crawlsite"
	DailyCrawl         = "dailycrawl"
	BLEBroadcast       = "blebroadcast"
	BLEBroadcastListen = "blebroadcastlisten"
	SiteHash           = "sitehash"
	DailyHugKeepAlive  = "dailyhugkeepalive"
	Quantum            = "quantum"
)

// Band names returned by Thresholds.Classify.
const (
	BandExcellent = "excellent"
	BandGood      = "good"
	BandPoor      = "poor"
	BandBad       = "bad"
)

// Thresholds are the upper bounds of the response-time bands.
type Thresholds struct {
	Excellent time.Duration `json:"excellent"`
	Good      time.Duration `json:"good"`
	Poor      time.Duration `json:"poor"`
}

// Classify maps a round-trip time to a band name.
func (t Thresholds) Classify(rtt time.Duration) string {
	switch {
	case rtt <= t.Excellent:
		return BandExcellent
	case rtt <= t.Good:
		return BandGood
	case rtt <= t.Poor:
		return BandPoor
	default:
		return BandBad
	}
}

// Info describes one endpoint type.
type Info struct {
	Type           string `json:"type"`
	FriendlyName   string `json:"friendly_name"`
	Icon           string `json:"icon"`
	Description    string `json:"description"`
	ProcessingTime string `json:"processing_time"`

	// LongRunning probes go through the scheduler's concurrency gate.
	LongRunning bool `json:"long_running"`

	// TimeoutMultiplier extends the configured timeout for slow variants.
	TimeoutMultiplier int `json:"timeout_multiplier"`

	// AnyPort applies when the probe uses the protocol default port,
	// SpecificPort when an explicit port is configured.
	AnyPort      Thresholds `json:"any_port"`
	SpecificPort Thresholds `json:"specific_port"`
}

// Registry is an immutable table of endpoint metadata.
// It is built once and shared by reference; there are no setters.
type Registry struct {
	infos map[string]Info
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry builds the registry from the built-in table.
func NewRegistry() *Registry {
	r := &Registry{
		infos: make(map[string]Info, len(builtin)),
	}
	for _, info := range builtin {
		r.infos[info.Type] = info
	}
	return r
}

// Lookup returns the metadata of endpointType. Unknown types get the ICMP
// metadata under a title-cased friendly name, mirroring the factory, which
// falls back to the ICMP variant.
func (r *Registry) Lookup(endpointType string) Info {
	key := strings.ToLower(strings.TrimSpace(endpointType))
	if info, ok := r.infos[key]; ok {
		return info
	}
	info := r.infos[ICMP]
	info.Type = key
	// A Caser keeps state between calls and must not be shared.
	info.FriendlyName = cases.Title(language.English).String(key)
	return info
}

// Known reports whether endpointType is in the table.
func (r *Registry) Known(endpointType string) bool {
	_, ok := r.infos[strings.ToLower(strings.TrimSpace(endpointType))]
	return ok
}

// Types returns every registered type in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.infos))
	for t := range r.infos {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FriendlyName returns the display name of endpointType.
func (r *Registry) FriendlyName(endpointType string) string {
	return r.Lookup(endpointType).FriendlyName
}

// IsLongRunning reports whether endpointType is gated as long running.
func (r *Registry) IsLongRunning(endpointType string) bool {
	return r.Lookup(endpointType).LongRunning
}

// TimeoutMultiplier returns the timeout extension factor of endpointType.
func (r *Registry) TimeoutMultiplier(endpointType string) int {
	if m := r.Lookup(endpointType).TimeoutMultiplier; m > 0 {
		return m
	}
	return 1
}

// ThresholdsFor returns the response-time bands for endpointType. A zero
// port selects the any-port bands.
func (r *Registry) ThresholdsFor(endpointType string, port int) Thresholds {
	info := r.Lookup(endpointType)
	if port == 0 {
		return info.AnyPort
	}
	return info.SpecificPort
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func bands(excellent, good, poor int) Thresholds {
	return Thresholds{Excellent: ms(excellent), Good: ms(good), Poor: ms(poor)}
}
