package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for netprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "netprobe",
		Short: "Periodic availability probes for network endpoints",
		Long: `netprobe runs availability probes against a list of network endpoints.

Each endpoint has a type that selects the protocol used to check it:
icmp, dns, http, https, httphtml, httpfull, smtp, rawconnect, nmap,
nmapvuln, crawlsite, dailycrawl, blebroadcast, blebroadcastlisten,
sitehash, dailyhugkeepalive and quantum. Probes run in poll cycles; every result is
stored in a local SQLite history and summarised in a report.

The probe list lives in a .netprobe YAML file. Run "netprobe init" to
create one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .netprobe in current, XDG config or home directory)")
	cmd.PersistentFlags().String("log-format", "", "Log output format: text or json")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this rotated file")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
