package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// @title           WinSentry API
// @version         1.0
// @description     Live failed-logon monitoring for the Windows Security event log.

// @host      localhost:8050
// @BasePath  /
// @schemes   http https

// @tag.name         snapshot
// @tag.description  Failed-logon snapshots published by the refresh loop

// @tag.name         monitor
// @tag.description  Refresh loop status and diagnostics

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "winsentry",
	Short: "Windows Security log failed-logon monitor",
	Long: `winsentry watches the Windows Security event log for failed logons
(event 4625), explains why each one failed and shows a live summary
in the terminal or on an HTTP dashboard.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTerminal,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Int("max-events", 0, "maximum number of matching events read per poll (MONITOR_MAX_EVENTS)")
	flags.Duration("interval", 0, "time between polls (MONITOR_POLL_INTERVAL)")
	flags.String("granularity", "", "timeline bucket size: second, minute, hour or day (MONITOR_BUCKET_GRANULARITY)")
	flags.String("channel", "", "event source: system, file, elasticsearch or postgres (CHANNEL_KIND)")
	flags.String("file", "", "JSON lines export read by the file channel (CHANNEL_FILE_PATH)")
	flags.String("log-level", "", "log level (LOG_LEVEL)")

	bindFlag("MONITOR_MAX_EVENTS", "max-events")
	bindFlag("MONITOR_POLL_INTERVAL", "interval")
	bindFlag("MONITOR_BUCKET_GRANULARITY", "granularity")
	bindFlag("CHANNEL_KIND", "channel")
	bindFlag("CHANNEL_FILE_PATH", "file")
	bindFlag("LOG_LEVEL", "log-level")

	rootCmd.AddCommand(terminalCmd, dashboardCmd, tailCmd, versionCmd)
}

func bindFlag(key, name string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(err)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "WinSentry v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
