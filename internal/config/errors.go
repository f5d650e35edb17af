package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and File.Validate() and
// provide specific information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling; the offending probe or
// filter is added with fmt.Errorf("%w") where it helps.
var (
	// ErrInvalidInterval is returned when the poll interval is not positive.
	ErrInvalidInterval = errors.New("invalid interval: must be positive")

	// ErrInvalidTimeout is returned when the default probe timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the normal probe limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxQueue is returned when the long-running gate capacity is not positive.
	ErrInvalidMaxQueue = errors.New("invalid max queue: must be positive")

	// ErrInvalidStartRate is returned when the probe start rate is negative.
	// Zero disables pacing.
	ErrInvalidStartRate = errors.New("invalid start rate: must be non-negative")

	// ErrInvalidRetention is returned when the history retention is negative.
	// Zero keeps results forever.
	ErrInvalidRetention = errors.New("invalid retention: must be non-negative")

	// ErrInvalidCycles is returned when the cycle count is negative.
	ErrInvalidCycles = errors.New("invalid cycles: must be non-negative")

	// ErrInvalidReportFormat is returned for a report format other than
	// text, json or markdown.
	ErrInvalidReportFormat = errors.New("invalid report format: use text, json or markdown")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: use text or json")

	// ErrConflictingProxy is returned when both an external proxy and the
	// embedded Tor proxy are requested.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrNoProbes is returned when the probe file defines no probes.
	ErrNoProbes = errors.New("no probes configured: add entries under 'probes' in the configuration file")

	// ErrDuplicateProbeID is returned when two probes share an ID.
	ErrDuplicateProbeID = errors.New("duplicate probe id")

	// ErrInvalidProbeID is returned for a negative probe ID.
	ErrInvalidProbeID = errors.New("invalid probe id: must be non-negative")

	// ErrMissingAddress is returned when a probe has no address.
	ErrMissingAddress = errors.New("probe address is empty")

	// ErrInvalidPort is returned for a port outside 0-65535.
	ErrInvalidPort = errors.New("invalid port: must be between 0 and 65535")

	// ErrInvalidFilter is returned for a filter with a negative skip or start.
	ErrInvalidFilter = errors.New("invalid filter: skip and start must be non-negative")

	// ErrMissingBinary is returned when a processor has no binary.
	ErrMissingBinary = errors.New("processor binary is empty")
)
