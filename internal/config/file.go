package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/netprobe/internal/command"
	"github.com/nao1215/netprobe/internal/crawler"
	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/quantum"
	"github.com/nao1215/netprobe/internal/scheduler"
)

// File represents the structure of the .netprobe configuration file.
type File struct {
	// Settings are the file defaults for Config. Flags override them.
	Settings FileSettings `yaml:"settings,omitempty"`

	// Filters split the probes of one endpoint type across cycles.
	Filters []scheduler.FilterStrategy `yaml:"filters,omitempty"`

	// Processors maps processor names ("nmap", "crawl", "blebroadcast",
	// "blelisten", "keepalive") to external commands. Crawl and keep-alive
	// fall back to the built-in processors when not configured.
	Processors map[string]ProcessorConfig `yaml:"processors,omitempty"`

	// Crawl configures the built-in crawl processor.
	Crawl CrawlConfig `yaml:"crawl,omitempty"`

	// Quantum configures quantum-safe TLS probes.
	Quantum QuantumConfig `yaml:"quantum,omitempty"`

	// Probes is the monitored endpoint list.
	Probes []ProbeConfig `yaml:"probes,omitempty"`
}

// FileSettings mirrors the Config fields that can be set from the file.
// Zero values leave the Config default untouched.
type FileSettings struct {
	Interval           time.Duration `yaml:"interval,omitempty"`
	Timeout            time.Duration `yaml:"timeout,omitempty"`
	Concurrency        int           `yaml:"concurrency,omitempty"`
	MaxQueue           int           `yaml:"maxQueue,omitempty"`
	StartRate          float64       `yaml:"startRate,omitempty"`
	StartBurst         int           `yaml:"startBurst,omitempty"`
	DBDir              string        `yaml:"dbDir,omitempty"`
	Retention          time.Duration `yaml:"retention,omitempty"`
	Proxy              string        `yaml:"proxy,omitempty"`
	EmbeddedTor        bool          `yaml:"embeddedTor,omitempty"`
	UserAgent          string        `yaml:"userAgent,omitempty"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify,omitempty"`
	LogFile            string        `yaml:"logFile,omitempty"`
	LogFormat          string        `yaml:"logFormat,omitempty"`
}

// ProcessorConfig describes an external command processor.
type ProcessorConfig struct {
	// Binary is the executable, looked up in PATH when not absolute.
	Binary string `yaml:"binary"`

	// Args are placed before the probe's own arguments.
	Args []string `yaml:"args,omitempty"`

	// Env holds extra KEY=VALUE entries for the child environment.
	Env []string `yaml:"env,omitempty"`

	// MaxOutput caps the output kept as the result message.
	MaxOutput int `yaml:"maxOutput,omitempty"`
}

// ExecOptions converts the processor config into command options.
func (p ProcessorConfig) ExecOptions() []command.ExecOption {
	opts := make([]command.ExecOption, 0, 3)
	if len(p.Args) > 0 {
		opts = append(opts, command.WithPrefixArgs(p.Args...))
	}
	if len(p.Env) > 0 {
		opts = append(opts, command.WithEnv(p.Env...))
	}
	if p.MaxOutput > 0 {
		opts = append(opts, command.WithMaxOutput(p.MaxOutput))
	}
	return opts
}

// CrawlConfig holds the built-in crawler limits.
type CrawlConfig struct {
	// Depth is the maximum link depth followed from the start page.
	Depth int `yaml:"depth,omitempty"`

	// MaxPages caps the pages fetched by one crawl.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Rate is the number of requests per second.
	Rate float64 `yaml:"rate,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// SpiderOptions converts the crawl limits into spider options. Unset
// limits keep the spider defaults.
func (c CrawlConfig) SpiderOptions(userAgent string) []crawler.SpiderOption {
	var opts []crawler.SpiderOption
	if c.Depth > 0 {
		opts = append(opts, crawler.WithMaxDepth(c.Depth))
	}
	if c.MaxPages > 0 {
		opts = append(opts, crawler.WithMaxPages(c.MaxPages))
	}
	if c.Rate > 0 {
		opts = append(opts, crawler.WithRate(c.Rate))
	}
	if len(c.IgnorePatterns) > 0 {
		opts = append(opts, crawler.WithIgnorePatterns(c.IgnorePatterns))
	}
	if len(c.FollowPatterns) > 0 {
		opts = append(opts, crawler.WithFollowPatterns(c.FollowPatterns))
	}
	if userAgent != "" {
		opts = append(opts, crawler.WithSpiderUserAgent(userAgent))
	}
	return opts
}

// QuantumConfig overrides the quantum analyzer defaults.
type QuantumConfig struct {
	// GroupTable is a YAML group table replacing the built-in one.
	GroupTable string `yaml:"groupTable,omitempty"`

	// OpenSSL is the openssl executable, e.g. an oqs-provider build.
	OpenSSL string `yaml:"openssl,omitempty"`

	// Modern and Legacy replace the built-in algorithm lists.
	Modern []quantum.AlgorithmInfo `yaml:"modern,omitempty"`
	Legacy []quantum.AlgorithmInfo `yaml:"legacy,omitempty"`
}

// GroupTableFile loads the configured group table. It returns nil when
// none is configured.
func (q QuantumConfig) GroupTableFile() (*quantum.GroupTable, error) {
	if q.GroupTable == "" {
		return nil, nil
	}
	return quantum.LoadGroupTable(q.GroupTable)
}

// AnalyzerOptions converts the algorithm overrides into analyzer options.
func (q QuantumConfig) AnalyzerOptions() []quantum.AnalyzerOption {
	var opts []quantum.AnalyzerOption
	if len(q.Modern) > 0 {
		opts = append(opts, quantum.WithModernAlgorithms(q.Modern))
	}
	if len(q.Legacy) > 0 {
		opts = append(opts, quantum.WithLegacyAlgorithms(q.Legacy))
	}
	return opts
}

// ProbeConfig is one monitored endpoint in the probe file.
type ProbeConfig struct {
	ID       int           `yaml:"id"`
	Type     string        `yaml:"type"`
	Address  string        `yaml:"address"`
	Port     int           `yaml:"port,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Username string        `yaml:"username,omitempty"`
	Password string        `yaml:"password,omitempty"`
	Args     string        `yaml:"args,omitempty"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`

	// SiteHash seeds the expected content hash of a sitehash probe.
	SiteHash string `yaml:"siteHash,omitempty"`
}

// IsEnabled reports whether the probe should run.
func (p ProbeConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Settings converts the entry into probe settings, using defaultTimeout
// when the entry sets none.
func (p ProbeConfig) Settings(defaultTimeout time.Duration) probe.Settings {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return probe.Settings{
		EntityID:     p.ID,
		Address:      strings.TrimSpace(p.Address),
		Port:         p.Port,
		EndpointType: strings.ToLower(strings.TrimSpace(p.Type)),
		Timeout:      timeout,
		Username:     p.Username,
		Password:     p.Password,
		Arguments:    p.Args,
		Enabled:      p.IsEnabled(),
		SiteHash:     p.SiteHash,
	}
}

// ProbeSettings converts every probe entry.
func (f *File) ProbeSettings(defaultTimeout time.Duration) []probe.Settings {
	out := make([]probe.Settings, 0, len(f.Probes))
	for _, p := range f.Probes {
		out = append(out, p.Settings(defaultTimeout))
	}
	return out
}

// Validate checks the probe list, filters and processors.
func (f *File) Validate() error {
	if len(f.Probes) == 0 {
		return ErrNoProbes
	}

	seen := make(map[int]struct{}, len(f.Probes))
	for i, p := range f.Probes {
		if p.ID < 0 {
			return fmt.Errorf("probes[%d]: %w", i, ErrInvalidProbeID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("probes[%d]: %w: %d", i, ErrDuplicateProbeID, p.ID)
		}
		seen[p.ID] = struct{}{}
		if strings.TrimSpace(p.Address) == "" {
			return fmt.Errorf("probe %d: %w", p.ID, ErrMissingAddress)
		}
		if p.Port < 0 || p.Port > 65535 {
			return fmt.Errorf("probe %d: %w", p.ID, ErrInvalidPort)
		}
	}

	for _, fs := range f.Filters {
		if fs.Skip < 0 || fs.Start < 0 {
			return fmt.Errorf("filter %q: %w", fs.Name, ErrInvalidFilter)
		}
	}

	for name, p := range f.Processors {
		if strings.TrimSpace(p.Binary) == "" {
			return fmt.Errorf("processor %q: %w", name, ErrMissingBinary)
		}
	}
	return nil
}
