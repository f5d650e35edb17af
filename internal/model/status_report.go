package model

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/netprobe/internal/endpoint"
	"github.com/nao1215/netprobe/internal/probe"
)

// StatusReport summarizes a set of probe results for display.
// It is built from live results after a cycle or from stored history.
type StatusReport struct {
	// Generated is when the report was created.
	Generated time.Time `json:"generated"`

	// CycleID is set when every entry comes from the same poll cycle.
	CycleID uuid.UUID `json:"cycle_id"`

	// === Summary ===

	// Total is the number of entries.
	Total int `json:"total"`

	// Up and Down split Total by verdict.
	Up   int `json:"up"`
	Down int `json:"down"`

	// HealthCounts counts entries per grade, keyed by grade text.
	HealthCounts map[string]int `json:"health_counts"`

	// === Entries ===

	// Entries are ordered by entity ID, newest first within one entity.
	Entries []ProbeEntry `json:"entries,omitempty"`

	registry *endpoint.Registry
	mixed    bool
}

// ProbeEntry is one probe result enriched with endpoint metadata.
type ProbeEntry struct {
	EntityID     int       `json:"entity_id"`
	EndpointType string    `json:"endpoint_type"`
	FriendlyName string    `json:"friendly_name"`
	Address      string    `json:"address"`
	Port         int       `json:"port,omitempty"`
	CycleID      uuid.UUID `json:"cycle_id"`
	IsUp         bool      `json:"is_up"`
	Status       string    `json:"status"`
	StatusCode   int       `json:"status_code,omitempty"`
	Message      string    `json:"message"`
	EventTime    time.Time `json:"event_time"`

	// RoundTrip is zero for failed runs; HasRoundTrip tells the two apart.
	RoundTrip    time.Duration `json:"round_trip"`
	HasRoundTrip bool          `json:"has_round_trip"`

	Health     Health `json:"health"`
	HealthText string `json:"health_text"`
}

// NewStatusReport creates an empty report that grades entries with reg.
// A nil registry selects endpoint.Default().
func NewStatusReport(reg *endpoint.Registry, generated time.Time) *StatusReport {
	if reg == nil {
		reg = endpoint.Default()
	}
	return &StatusReport{
		Generated:    generated,
		HealthCounts: make(map[string]int, len(AllHealth)),
		registry:     reg,
	}
}

// Add appends the result r of the probe configured by s. Results that
// never reached a terminal status are ignored and Add returns false.
func (r *StatusReport) Add(s probe.Settings, res probe.Result) bool {
	if !res.Completed() {
		return false
	}

	entry := ProbeEntry{
		EntityID:     res.EntityID,
		EndpointType: s.EndpointType,
		FriendlyName: r.registry.FriendlyName(s.EndpointType),
		Address:      s.Address,
		Port:         s.Port,
		CycleID:      res.CycleID,
		IsUp:         res.IsUp,
		Status:       res.Snapshot.Status,
		StatusCode:   res.Snapshot.StatusCode,
		Message:      res.Message,
		EventTime:    res.EventTime,
	}
	entry.RoundTrip, entry.HasRoundTrip = res.RoundTrip()
	entry.Health = r.grade(s, entry)
	entry.HealthText = entry.Health.String()

	r.insert(entry)
	return true
}

// grade maps an entry onto the bands of its endpoint type.
func (r *StatusReport) grade(s probe.Settings, e ProbeEntry) Health {
	if !e.IsUp {
		return HealthDown
	}
	if !e.HasRoundTrip {
		return HealthGood
	}
	band := r.registry.ThresholdsFor(s.EndpointType, s.Port).Classify(e.RoundTrip)
	return HealthFromBand(band)
}

func (r *StatusReport) insert(e ProbeEntry) {
	i, _ := slices.BinarySearchFunc(r.Entries, e, compareEntries)
	r.Entries = slices.Insert(r.Entries, i, e)

	r.Total++
	if e.IsUp {
		r.Up++
	} else {
		r.Down++
	}
	r.HealthCounts[e.HealthText]++

	switch {
	case r.Total == 1:
		r.CycleID = e.CycleID
	case !r.mixed && e.CycleID != r.CycleID:
		r.mixed = true
		r.CycleID = uuid.Nil
	}
}

func compareEntries(a, b ProbeEntry) int {
	if c := cmp.Compare(a.EntityID, b.EntityID); c != 0 {
		return c
	}
	return b.EventTime.Compare(a.EventTime)
}

// Count returns the number of entries graded h.
func (r *StatusReport) Count(h Health) int {
	return r.HealthCounts[h.String()]
}

// HasEntries returns true if the report holds any entry.
func (r *StatusReport) HasEntries() bool {
	return len(r.Entries) > 0
}

// Availability returns the share of entries that are up, in percent.
// An empty report is fully available.
func (r *StatusReport) Availability() float64 {
	if r.Total == 0 {
		return 100
	}
	return float64(r.Up) * 100 / float64(r.Total)
}

// EntriesByHealth returns the entries graded h.
func (r *StatusReport) EntriesByHealth(h Health) []ProbeEntry {
	var out []ProbeEntry
	for _, e := range r.Entries {
		if e.Health == h {
			out = append(out, e)
		}
	}
	return out
}

// DownEntries returns the entries whose probe failed.
func (r *StatusReport) DownEntries() []ProbeEntry {
	return r.EntriesByHealth(HealthDown)
}
