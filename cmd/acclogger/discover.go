package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/lorahub/internal/discovery"
	"github.com/muurk/lorahub/internal/ui"
)

var scanTimeout int

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 5, "Scan timeout in seconds")
	rootCmd.AddCommand(discoverCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find radio bridges on the network",
	Long: `Browse mDNS for radio bridges (` + discovery.ServiceType + `) and list
their WebSocket URLs.`,
	Example: `  acclogger discover
  acclogger discover --scan-timeout 15`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	fmt.Printf("Scanning for radio bridges (timeout: %ds)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second
	hubs, err := scanner.ScanForHubs(ctx)
	if err != nil && ctx.Err() != context.Canceled {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(hubs) == 0 {
		ui.NewPrinter(nil).PrintWarning("No bridges found",
			ui.Param{Key: "Hint", Value: "check the bridge is running and on this network"},
			ui.Param{Key: "Hint", Value: "or pass --bridge ws://host:port/radio"},
		)
		return nil
	}

	fmt.Printf("Found %d bridge(s):\n\n", len(hubs))
	for i, hub := range hubs {
		fmt.Printf("%d. %s\n", i+1, hub.Instance)
		fmt.Printf("   Host: %s\n", hub.Hostname)
		fmt.Printf("   URL:  %s\n", hub.URL())
		if v := hub.GetMetadata("version"); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		fmt.Println()
	}
	fmt.Println("Use 'acclogger --bridge <url> check --units 1,2,3' to talk to a bridge")
	return nil
}
