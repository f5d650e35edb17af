package model

import "github.com/nao1215/netprobe/internal/endpoint"

// Health grades one probe result. Down is the worst grade; the others map
// the round-trip time onto the endpoint type's response-time bands.
//
// Design decision: We use iota-based constants ordered from worst to best
// so that grades compare and sort numerically. The String() method provides
// the text used in reports.
type Health int

const (
	// HealthDown means the probe failed.
	HealthDown Health = iota

	// HealthBad means the probe succeeded slower than the poor band.
	HealthBad

	// HealthPoor means the round trip fell in the poor band.
	HealthPoor

	// HealthGood means the round trip fell in the good band.
	HealthGood

	// HealthExcellent means the round trip fell in the excellent band.
	HealthExcellent
)

// AllHealth lists every grade from best to worst, the order reports use.
var AllHealth = []Health{HealthExcellent, HealthGood, HealthPoor, HealthBad, HealthDown}

// String returns a human-readable representation of the grade.
func (h Health) String() string {
	switch h {
	case HealthDown:
		return "DOWN"
	case HealthBad:
		return "BAD"
	case HealthPoor:
		return "POOR"
	case HealthGood:
		return "GOOD"
	case HealthExcellent:
		return "EXCELLENT"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns the marker used by the Markdown report.
func (h Health) Emoji() string {
	switch h {
	case HealthExcellent:
		return "🟢"
	case HealthGood:
		return "🔵"
	case HealthPoor:
		return "🟡"
	case HealthBad:
		return "🟠"
	default:
		return "🔴"
	}
}

// HealthFromBand converts an endpoint band name into a grade. Unknown
// band names grade as bad.
func HealthFromBand(band string) Health {
	switch band {
	case endpoint.BandExcellent:
		return HealthExcellent
	case endpoint.BandGood:
		return HealthGood
	case endpoint.BandPoor:
		return HealthPoor
	default:
		return HealthBad
	}
}
