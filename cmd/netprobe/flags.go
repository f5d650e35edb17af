package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/netprobe/internal/config"
	"github.com/nao1215/netprobe/internal/log"
)

// addSchedulerFlags registers the flags controlling poll cycles.
func addSchedulerFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("interval", "i", config.DefaultInterval,
		"Time between the starts of two poll cycles")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Maximum number of probes running at once")
	cmd.Flags().Int("max-queue", config.DefaultMaxQueue,
		"Maximum number of long-running probes (nmap, crawl, keep-alive) running at once")
	cmd.Flags().Float64("start-rate", 0,
		"Maximum probe starts per second (0 disables pacing)")
	cmd.Flags().Int("start-burst", 0,
		"Probe starts allowed in a burst when --start-rate is set")
	cmd.Flags().IntP("cycles", "n", 0,
		"Stop after this many cycles (0 runs until interrupted)")
}

// addProbeFlags registers the flags shared by every command that runs probes.
func addProbeFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Base timeout of probes that do not set their own")
	cmd.Flags().StringP("proxy", "x", "",
		"Route rawconnect, smtp and HTTP probes through this SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon and route probes through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User agent sent by HTTP, crawl and site hash probes")
	cmd.Flags().BoolP("insecure", "k", false,
		"Skip TLS certificate verification for HTTP probes")
	cmd.Flags().String("openssl", "",
		"openssl executable used by quantum probes")
}

// addReportFlags registers the report output flags.
func addReportFlags(cmd *cobra.Command, defaultFormat string) {
	cmd.Flags().StringP("format", "f", defaultFormat,
		"Report format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// addDatabaseFlags registers the result history flags.
func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", "",
		"Directory of the result history (default: XDG data directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not store results in the history database")
	cmd.Flags().Duration("retention", config.DefaultRetention,
		"How long stored results are kept (0 keeps them forever)")
}

// changedFlagSet returns the flag set holding name when the user set it,
// or nil. Persistent flags of the root are consulted as well because they
// are only merged into cmd.Flags() once the command is executed.
func changedFlagSet(cmd *cobra.Command, name string) *pflag.FlagSet {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.Root().PersistentFlags()} {
		if f := fs.Lookup(name); f != nil {
			if f.Changed {
				return fs
			}
			return nil
		}
	}
	return nil
}

func applyString(cmd *cobra.Command, name string, dst *string) error {
	fs := changedFlagSet(cmd, name)
	if fs == nil {
		return nil
	}
	v, err := fs.GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func applyBool(cmd *cobra.Command, name string, dst *bool) error {
	fs := changedFlagSet(cmd, name)
	if fs == nil {
		return nil
	}
	v, err := fs.GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func applyInt(cmd *cobra.Command, name string, dst *int) error {
	fs := changedFlagSet(cmd, name)
	if fs == nil {
		return nil
	}
	v, err := fs.GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func applyFloat(cmd *cobra.Command, name string, dst *float64) error {
	fs := changedFlagSet(cmd, name)
	if fs == nil {
		return nil
	}
	v, err := fs.GetFloat64(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func applyDuration(cmd *cobra.Command, name string, dst *time.Duration) error {
	fs := changedFlagSet(cmd, name)
	if fs == nil {
		return nil
	}
	v, err := fs.GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config path from the command or its parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// buildConfig creates a Config from the configuration file and the cobra
// command flags. Values are layered as defaults, then the file settings,
// then flags the user actually set, so an unset flag never hides a file
// value.
//
// requireFile makes a missing configuration file an error even when no
// path was given; run needs a probe list, check does not.
func buildConfig(cmd *cobra.Command, requireFile bool) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	// If user explicitly specified a config file path, error if not found.
	explicitPath := getConfigFlag(cmd)
	configPath := config.FindConfigFile(explicitPath)
	switch {
	case configPath != "":
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ConfigFilePath = configPath
		cfg.ApplyFile(f)
	case explicitPath != "":
		return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
	case requireFile:
		return nil, fmt.Errorf("%w (run \"netprobe init\" to create %s)",
			config.ErrConfigNotFound, config.DefaultConfigFile)
	}

	steps := []func() error{
		func() error { return applyString(cmd, "log-format", &cfg.LogFormat) },
		func() error { return applyString(cmd, "log-file", &cfg.LogFile) },
		func() error { return applyDuration(cmd, "interval", &cfg.Interval) },
		func() error { return applyDuration(cmd, "timeout", &cfg.Timeout) },
		func() error { return applyInt(cmd, "concurrency", &cfg.Concurrency) },
		func() error { return applyInt(cmd, "max-queue", &cfg.MaxQueue) },
		func() error { return applyFloat(cmd, "start-rate", &cfg.StartRate) },
		func() error { return applyInt(cmd, "start-burst", &cfg.StartBurst) },
		func() error { return applyInt(cmd, "cycles", &cfg.Cycles) },
		func() error { return applyString(cmd, "format", &cfg.ReportFormat) },
		func() error { return applyString(cmd, "output", &cfg.ReportFile) },
		func() error { return applyString(cmd, "db-dir", &cfg.DBDir) },
		func() error { return applyDuration(cmd, "retention", &cfg.Retention) },
		func() error { return applyString(cmd, "proxy", &cfg.ProxyAddress) },
		func() error { return applyBool(cmd, "embedded-tor", &cfg.UseEmbeddedTor) },
		func() error { return applyDuration(cmd, "tor-timeout", &cfg.TorStartupTimeout) },
		func() error { return applyString(cmd, "user-agent", &cfg.UserAgent) },
		func() error { return applyBool(cmd, "insecure", &cfg.InsecureSkipVerify) },
		func() error { return applyString(cmd, "openssl", &cfg.OpenSSLBinary) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	var noDB bool
	if err := applyBool(cmd, "no-db", &noDB); err != nil {
		return nil, err
	}
	if noDB {
		cfg.SaveToDB = false
	}

	// The report format flag has a non-empty default that run must honour
	// even when the user did not touch it.
	if cfg.ReportFormat == "" {
		if f := cmd.Flags().Lookup("format"); f != nil {
			cfg.ReportFormat = f.DefValue
		}
	}

	return cfg, nil
}

// setupLogger creates the structured logger described by cfg. Logs go to
// stderr so that reports on stdout stay machine readable.
func setupLogger(cfg *config.Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	if console == nil {
		console = os.Stderr
	}
	logger, closer, err := log.New(log.Options{
		Verbose: cfg.Verbose,
		Format:  cfg.LogFormat,
		Console: console,
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closer, nil
}
