package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/scheduler"
	"github.com/nao1215/netprobe/internal/transport"
)

// Default configuration values.
const (
	// DefaultInterval is the time between the starts of two poll cycles.
	DefaultInterval = time.Minute

	// DefaultTimeout is the base timeout of a probe without its own timeout.
	// Slow variants extend it by their endpoint multiplier.
	DefaultTimeout = probe.DefaultTimeout

	// DefaultConcurrency caps the normal probes running at once.
	DefaultConcurrency = scheduler.DefaultConcurrency

	// DefaultMaxQueue caps the long-running probes running at once.
	// Nmap and crawl probes are heavy, so the gate is kept small.
	DefaultMaxQueue = scheduler.DefaultMaxQueue

	// DefaultRetention is how long results are kept in the database.
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultKeepAliveInterval is the poll interval of the built-in
	// keep-alive processor.
	DefaultKeepAliveInterval = 5 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "netprobe"

	// DefaultUserAgent identifies netprobe in HTTP requests.
	DefaultUserAgent = transport.DefaultUserAgent
)

// Config holds all runtime options of netprobe.
// It is populated from NewConfig defaults, then the settings section of
// the probe file, then CLI flags, and is passed through the application
// rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The probe list, filters and processors live in File
// because they are only ever read from the configuration file.
type Config struct {
	// Interval is the time between the starts of two poll cycles.
	Interval time.Duration

	// Timeout is the base timeout of probes that do not set one.
	Timeout time.Duration

	// Concurrency caps the normal probes running at once.
	Concurrency int

	// MaxQueue caps the long-running probes running at once.
	MaxQueue int

	// StartRate limits probe starts per second; zero disables pacing.
	StartRate  float64
	StartBurst int

	// Cycles stops `run` after this many cycles; zero runs until signalled.
	Cycles int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogFormat is "text" (default) or "json".
	LogFormat string

	// LogFile, when set, also writes logs to a rotated file.
	LogFile string

	// ConfigFilePath is the path of the loaded probe file. See
	// FindConfigFile for the search order when no path is given.
	ConfigFilePath string

	// File is the loaded probe file.
	File *File

	// ReportFormat selects the report printed after every cycle: "text",
	// "json" or "markdown". Empty prints no report.
	ReportFormat string

	// ReportFile, when set, receives the report instead of stdout.
	ReportFile string

	// DBDir is the directory of the SQLite result history.
	// Defaults to XDG data directory (~/.local/share/netprobe on Linux).
	DBDir string

	// SaveToDB enables the result history.
	SaveToDB bool

	// Retention is how long stored results are kept; zero keeps them forever.
	Retention time.Duration

	// ProxyAddress routes TCP, SMTP and HTTP probes through a SOCKS5 proxy.
	ProxyAddress string

	// UseEmbeddedTor starts a Tor daemon and routes probes through it so
	// that .onion endpoints can be monitored.
	UseEmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// UserAgent is sent by HTTP, crawl and site hash probes.
	UserAgent string

	// InsecureSkipVerify disables TLS verification for HTTP probes.
	InsecureSkipVerify bool

	// OpenSSLBinary is the openssl executable used by quantum probes.
	OpenSSLBinary string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Interval:          DefaultInterval,
		Timeout:           DefaultTimeout,
		Concurrency:       DefaultConcurrency,
		MaxQueue:          DefaultMaxQueue,
		LogFormat:         "text",
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
		Retention:         DefaultRetention,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		File:              &File{},
	}
}

// XDGDataDir returns the XDG data directory for netprobe.
// On Linux: ~/.local/share/netprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for netprobe.
// On Linux: ~/.config/netprobe
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile copies every setting the file sets onto c and keeps f as the
// probe file. Flags are applied afterwards so they win.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	s := f.Settings
	if s.Interval > 0 {
		c.Interval = s.Interval
	}
	if s.Timeout > 0 {
		c.Timeout = s.Timeout
	}
	if s.Concurrency > 0 {
		c.Concurrency = s.Concurrency
	}
	if s.MaxQueue > 0 {
		c.MaxQueue = s.MaxQueue
	}
	if s.StartRate > 0 {
		c.StartRate = s.StartRate
		c.StartBurst = s.StartBurst
	}
	if s.DBDir != "" {
		c.DBDir = s.DBDir
	}
	if s.Retention > 0 {
		c.Retention = s.Retention
	}
	if s.Proxy != "" {
		c.ProxyAddress = s.Proxy
	}
	if s.EmbeddedTor {
		c.UseEmbeddedTor = true
	}
	if s.UserAgent != "" {
		c.UserAgent = s.UserAgent
	}
	if s.InsecureSkipVerify {
		c.InsecureSkipVerify = true
	}
	if s.LogFile != "" {
		c.LogFile = s.LogFile
	}
	if s.LogFormat != "" {
		c.LogFormat = s.LogFormat
	}
	if f.Quantum.OpenSSL != "" {
		c.OpenSSLBinary = f.Quantum.OpenSSL
	}
}

// Validate checks if the configuration is valid.
// It returns the first sentinel error found.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast with clear error messages before any probe runs.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxQueue <= 0 {
		return ErrInvalidMaxQueue
	}
	if c.StartRate < 0 {
		return ErrInvalidStartRate
	}
	if c.Retention < 0 {
		return ErrInvalidRetention
	}
	if c.Cycles < 0 {
		return ErrInvalidCycles
	}
	switch c.ReportFormat {
	case "", "text", "json", "markdown", "md":
	default:
		return ErrInvalidReportFormat
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	if c.ProxyAddress != "" && c.UseEmbeddedTor {
		return ErrConflictingProxy
	}
	return nil
}
