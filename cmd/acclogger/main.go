// Acclogger drives a population of LoRa accelerometer transmitters.
//
// It switches units on and off, checks which ones are in range, logs
// their telemetry to CSV (and optionally MQTT) and updates their firmware
// over the air. The concentrator is reached through a radio bridge, found
// by mDNS when --bridge is not given, or simulated in-process with --sim.
//
// Usage:
//
//	acclogger [command] [flags]
//
// See 'acclogger --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	bridgeURL  string
	logLevel   string
	unitList   string
	timeoutMs  int
	simUnits   string
)

var rootCmd = &cobra.Command{
	Use:   "acclogger",
	Short: "LoRa accelerometer hub",
	Long: `Control and firmware delivery for LoRa accelerometer transmitters.

Units 1-8 are addressed as a group (enable, disable, check, stream); any
unit 1-255 can be addressed individually (raw, program).`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = os.Getenv(logging.LogLevelEnvVar)
		}
		return logging.Initialize(level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/lorahub/config.yaml)")
	pf.StringVar(&bridgeURL, "bridge", "", "Radio bridge URL, e.g. ws://gateway.local:8765/radio (default: config, then mDNS)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	pf.StringVarP(&unitList, "units", "u", "", "Comma-separated unit numbers, e.g. 1,3,5")
	pf.IntVar(&timeoutMs, "timeout", 0, "Reply timeout in milliseconds (overrides reply_timeout_ms)")
	pf.StringVar(&simUnits, "sim", "", "Use an in-process simulated population with these unit numbers instead of a radio")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("acclogger %s\n", version.Full())
	},
}
