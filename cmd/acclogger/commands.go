package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/ui"
)

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(checkCmd)
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Switch group units on",
	Long: `Send enable to units 1-8 and report which acknowledged.

With send_duration_ms set in the config the command is repeated until every
unit answered or the duration ran out, then the hub keeps listening for
receive_duration_ms.`,
	Example: `  acclogger enable --units 1,3
  acclogger enable --units 1,2,3,4 --timeout 5000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGroup(cmd.Context(), "Enable", (*protocol.Engine).Enable)
	},
}

var disableCmd = &cobra.Command{
	Use:     "disable",
	Short:   "Switch group units off",
	Example: `  acclogger disable --units 1,3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGroup(cmd.Context(), "Disable", (*protocol.Engine).Disable)
	},
}

var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "Range-check group units",
	Example: `  acclogger check --units 1,2,3,4,5,6,7,8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGroup(cmd.Context(), "Range check", (*protocol.Engine).RangeCheck)
	},
}

type groupOp func(*protocol.Engine, context.Context, protocol.TargetAddress) (uint8, error)

func runGroup(ctx context.Context, title string, op groupOp) error {
	if ctx == nil {
		ctx = context.Background()
	}
	addr, err := groupTarget()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(ctx)
	defer stop()

	h, err := openHub(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = h.close() }()

	p := ui.NewPrinter(nil)
	p.PrintHeader(title, "acclogger",
		ui.Param{Key: "Units", Value: unitList},
		ui.Param{Key: "Channel", Value: h.cfg.ControlParams().String()},
		ui.Param{Key: "Timeout", Value: h.engine.ReplyTimeout.String()},
	)

	start := time.Now()
	accepted, err := op(h.engine, ctx, addr)
	if err != nil {
		p.PrintFailure(title+" failed", err, []string{
			"Check the bridge is reachable (acclogger discover)",
			"Run with --log-level debug to see every frame",
		})
		return err
	}

	table := ui.NewUnitTable(fmt.Sprintf("%s (%s)", title, time.Since(start).Round(time.Millisecond)), addr.Mask(), accepted)
	p.PrintUnits(table)
	if missing := table.Missing(); missing != 0 {
		return fmt.Errorf("%d unit(s) did not answer: %v", len(protocol.MaskUnits(missing)), protocol.MaskUnits(missing))
	}
	return nil
}
