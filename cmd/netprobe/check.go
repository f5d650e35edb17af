package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/netprobe/internal/config"
	"github.com/nao1215/netprobe/internal/model"
	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/report"
)

// errProbeDown is returned by check when the endpoint did not answer, so
// that the process exits non-zero.
var errProbeDown = errors.New("probe is down")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe a single endpoint once",
		Long: `Check runs one probe against a single endpoint and prints the result.

The command exits with a non-zero status when the endpoint is down, which
makes it usable from scripts and container health checks. Processors and
quantum settings of the configuration file are used when one is found.

Examples:
  # Ping a host
  netprobe check --type icmp --address 192.0.2.1

  # Check an HTTPS endpoint with a 5 second timeout
  netprobe check --type https --address example.com -t 5s

  # Check that a TCP port accepts connections
  netprobe check --type rawconnect --address db.example.com --port 5432

  # Print the result as JSON
  netprobe check --type dns --address example.com -f json`,
		Args: cobra.NoArgs,
		RunE: runCheckCmd,
	}

	cmd.Flags().String("type", "", "Endpoint type (icmp, dns, http, https, smtp, rawconnect, ...)")
	cmd.Flags().StringP("address", "a", "", "Host name, IP address, URL or BLE address to probe")
	cmd.Flags().IntP("port", "p", 0, "Target port (0 uses the protocol default)")
	cmd.Flags().Int("id", 0, "Entity ID recorded in the result")
	cmd.Flags().String("args", "", "Arguments for command probes such as nmap")
	cmd.Flags().String("username", "", "Username for probes that authenticate")
	cmd.Flags().String("password", "", "Password, or the BLE key of broadcast probes")
	_ = cmd.MarkFlagRequired("type")    //nolint:errcheck // flag is defined above
	_ = cmd.MarkFlagRequired("address") //nolint:errcheck // flag is defined above

	addProbeFlags(cmd)
	addReportFlags(cmd, report.FormatText)

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	s, err := checkSettings(cmd, cfg)
	if err != nil {
		return err
	}

	logger, closer, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	env, err := newEnvironment(ctx, cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.close()

	if !env.factory.Registry().Known(s.EndpointType) {
		return fmt.Errorf("unknown endpoint type %q (known: %s)",
			s.EndpointType, strings.Join(env.factory.Registry().Types(), ", "))
	}

	logger.Debug("running probe", "type", s.EndpointType, "address", s.Address, "port", s.Port)
	res, _ := probe.Run(ctx, env.factory.New(s))

	rep := model.NewStatusReport(env.factory.Registry(), time.Now())
	rep.Add(s, res)
	if err := outputReport(cmd.OutOrStdout(), cfg.ReportFormat, cfg.ReportFile, rep); err != nil {
		return err
	}

	if !res.IsUp {
		return fmt.Errorf("%w: %s", errProbeDown, res.Message)
	}
	return nil
}

// checkSettings builds the probe settings from the check flags.
func checkSettings(cmd *cobra.Command, cfg *config.Config) (probe.Settings, error) {
	pc := config.ProbeConfig{}

	var err error
	if pc.Type, err = cmd.Flags().GetString("type"); err != nil {
		return probe.Settings{}, err
	}
	if pc.Address, err = cmd.Flags().GetString("address"); err != nil {
		return probe.Settings{}, err
	}
	if pc.Port, err = cmd.Flags().GetInt("port"); err != nil {
		return probe.Settings{}, err
	}
	if pc.ID, err = cmd.Flags().GetInt("id"); err != nil {
		return probe.Settings{}, err
	}
	if pc.Args, err = cmd.Flags().GetString("args"); err != nil {
		return probe.Settings{}, err
	}
	if pc.Username, err = cmd.Flags().GetString("username"); err != nil {
		return probe.Settings{}, err
	}
	if pc.Password, err = cmd.Flags().GetString("password"); err != nil {
		return probe.Settings{}, err
	}

	// Reuse the probe file rules for a single entry.
	f := &config.File{Probes: []config.ProbeConfig{pc}}
	if err := f.Validate(); err != nil {
		return probe.Settings{}, fmt.Errorf("invalid probe: %w", err)
	}
	return pc.Settings(cfg.Timeout), nil
}
