package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/lorahub/internal/ota"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/ui"
)

var (
	firmwareFile string
	assumeYes    bool
)

func init() {
	programCmd.Flags().StringVarP(&firmwareFile, "file", "f", "", "Firmware image (default: firmware_path from the config)")
	programCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(programCmd)
}

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Update unit firmware over the air",
	Long: `Program each listed unit in turn: wait for it to show up, switch it
to programming mode, move to the programming channel, send the image in
120 byte chunks and resend whatever the unit reports as bad.`,
	Example: `  acclogger program --units 42 --file program.bin
  acclogger program --units 1,2,3 --yes`,
	RunE: runProgram,
}

func runProgram(cmd *cobra.Command, args []string) error {
	units, err := targets()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	h, err := openHub(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = h.close() }()

	path := firmwareFile
	if path == "" {
		path = h.cfg.FirmwarePath
	}
	img, err := ota.LoadImage(path)
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if !assumeYes && !interactive {
		return errors.New("refusing to program without a terminal; pass --yes")
	}

	prog := ota.NewProgrammer(h.engine)
	prog.ControlParams = h.cfg.ControlParams()
	prog.ProgrammingParams = h.cfg.ProgrammingParams()
	prog.PresenceTimeout = h.cfg.PresenceTimeout()
	prog.ChunkDelay = h.cfg.ChunkDelay()
	prog.MaxRounds = h.cfg.MaxRetransmitRounds

	var failed []uint8
	for _, id := range units {
		addr, err := protocol.Individual(id)
		if err != nil {
			return err
		}
		if !assumeYes && !ui.ConfirmProgramming(os.Stdin, os.Stdout, id, img.Size()) {
			continue
		}

		runner := ui.NewProgramRunner(os.Stdout, "acclogger program",
			ui.Param{Key: "Unit", Value: fmt.Sprintf("%d", id)},
			ui.Param{Key: "Image", Value: fmt.Sprintf("%s (%d bytes, %d chunks, crc 0x%08X)", path, img.Size(), img.Chunks(), img.Checksum())},
			ui.Param{Key: "Channel", Value: prog.ProgrammingParams.String()},
		)
		runner.Begin()
		prog.Progress = runner.Event
		res, err := prog.Program(ctx, addr, img)
		runner.Finish(res, err)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("programming failed for unit(s) %v", failed)
	}
	return nil
}
