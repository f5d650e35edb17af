package probe

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// UnknownRoundTrip is recorded as the round-trip time of failed runs.
const UnknownRoundTrip int64 = math.MaxInt64

// StatusSnapshot is the status part of a probe outcome.
type StatusSnapshot struct {
	// Status is a short status text such as "OK", "Timeout" or "Error".
	Status string `json:"status"`

	// RoundTripTime is in milliseconds. UnknownRoundTrip marks a failure.
	RoundTripTime int64 `json:"round_trip_ms"`

	// StatusCode is a protocol specific code (HTTP status, ICMP type), or zero.
	StatusCode int `json:"status_code,omitempty"`
}

// Result is the outcome of a single probe run.
// PreConnect allocates a fresh Result, Connect fills it in, and the caller
// reads it after PostConnect.
type Result struct {
	EntityID  int            `json:"entity_id"`
	CycleID   uuid.UUID      `json:"cycle_id"`
	IsUp      bool           `json:"is_up"`
	Message   string         `json:"message"`
	EventTime time.Time      `json:"event_time"`
	Snapshot  StatusSnapshot `json:"snapshot"`
}

// Completed reports whether a terminal status was recorded.
func (r Result) Completed() bool {
	return r.Snapshot.Status != ""
}

// RoundTrip returns the round-trip time as a duration and false for failed runs.
func (r Result) RoundTrip() (time.Duration, bool) {
	if r.Snapshot.RoundTripTime == UnknownRoundTrip {
		return 0, false
	}
	return time.Duration(r.Snapshot.RoundTripTime) * time.Millisecond, true
}

type cycleKey struct{}

// WithCycle returns a context carrying the poll cycle identifier.
func WithCycle(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

// CycleFromContext returns the poll cycle identifier stored by WithCycle,
// or uuid.Nil.
func CycleFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(cycleKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
