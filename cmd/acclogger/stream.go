package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/lorahub/internal/config"
	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/publish"
	"github.com/muurk/lorahub/internal/stream"
	"github.com/muurk/lorahub/internal/ui"
)

// MQTTPasswordEnvVar holds the broker password; it is never read from the
// config file.
const MQTTPasswordEnvVar = "LORAHUB_MQTT_PASSWORD"

var (
	skipEnable bool
	noMQTT     bool
)

func init() {
	streamCmd.Flags().BoolVar(&skipEnable, "skip-enable", false, "Do not enable the units first")
	streamCmd.Flags().BoolVar(&noMQTT, "no-mqtt", false, "Do not publish to MQTT even if configured")
	rawCmd.Flags().BoolVar(&noMQTT, "no-mqtt", false, "Do not publish to MQTT even if configured")

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(rawCmd)
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Enable group units and log their telemetry",
	Long: `Enable the units, start group streaming and write every page to
<log_dir>/<unit>_<UTC time>.csv until interrupted.`,
	Example: `  acclogger stream --units 1,2,3`,
	RunE:    runStream,
}

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Log the raw page stream of one unit",
	Long: `Wait for the unit to show up, request its raw page stream and write
every page to <log_dir>/<UTC time>.csv until interrupted.`,
	Example: `  acclogger raw --units 42`,
	RunE:    runRaw,
}

func runStream(cmd *cobra.Command, args []string) error {
	addr, err := groupTarget()
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

	p := ui.NewPrinter(nil)
	p.PrintHeader("Group streaming", "acclogger stream",
		ui.Param{Key: "Units", Value: unitList},
		ui.Param{Key: "Log dir", Value: h.cfg.LogDir},
	)

	if !skipEnable {
		accepted, err := h.engine.Enable(ctx, addr)
		if err != nil {
			return err
		}
		p.PrintUnits(ui.NewUnitTable("Enable", addr.Mask(), accepted))
		if accepted == 0 {
			return errors.New("no unit answered enable")
		}
		if addr, err = protocol.Group(accepted); err != nil {
			return err
		}
	}

	start := time.Now().UTC()
	csvSink := stream.NewUnitCSVSink(h.cfg.LogDir, start)
	sink, err := withMQTT(h.cfg, csvSink)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sink = withMonitor(p, sink, "Streaming units "+unitList, cancel)

	st := stream.NewStreamer(h.engine)
	st.PresenceTimeout = h.cfg.PresenceTimeout()
	stats, err := st.Group(ctx, addr, sink)
	closeErr := sink.Close()
	if err != nil {
		return err
	}
	printStats(p, stats, csvSink.Files(), time.Since(start))
	return closeErr
}

func runRaw(cmd *cobra.Command, args []string) error {
	units, err := targets()
	if err != nil {
		return err
	}
	if len(units) != 1 {
		return fmt.Errorf("raw streams one unit at a time, got %d", len(units))
	}
	addr, err := protocol.Individual(units[0])
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

	p := ui.NewPrinter(nil)
	p.PrintHeader("Raw stream", "acclogger raw",
		ui.Param{Key: "Unit", Value: fmt.Sprintf("%d", addr.ID())},
		ui.Param{Key: "Log dir", Value: h.cfg.LogDir},
		ui.Param{Key: "Presence", Value: h.cfg.PresenceTimeout().String()},
	)

	start := time.Now().UTC()
	csvSink := stream.NewRawCSVSink(h.cfg.LogDir, start)
	sink, err := withMQTT(h.cfg, csvSink)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sink = withMonitor(p, sink, fmt.Sprintf("Raw stream from unit %d", addr.ID()), cancel)

	st := stream.NewStreamer(h.engine)
	st.PresenceTimeout = h.cfg.PresenceTimeout()
	stats, err := st.Raw(ctx, addr, sink)
	closeErr := sink.Close()
	if err != nil {
		if errors.Is(err, protocol.ErrNoReply) {
			p.PrintFailure("Unit not found", err, []string{
				"Check the unit is powered",
				"Raise presence_timeout_ms if it wakes rarely",
			})
		}
		return err
	}
	printStats(p, stats, csvSink.Files(), time.Since(start))
	return closeErr
}

// withMonitor adds a live page monitor when stdout is a terminal.
// Otherwise it prints a one-line hint and returns sink unchanged.
func withMonitor(p *ui.Printer, sink stream.Sink, title string, cancel context.CancelFunc) stream.Sink {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		p.Println(ui.StepRunningStyle.Render("  " + title + "; press Ctrl+C to stop"))
		return sink
	}
	return stream.MultiSink{sink, ui.StartMonitor(os.Stdout, title, cancel)}
}

// withMQTT adds an MQTT sink when the config names a broker.
func withMQTT(cfg *config.Config, csvSink stream.Sink) (stream.Sink, error) {
	if noMQTT || cfg.MQTT == nil || cfg.MQTT.Broker == "" {
		return csvSink, nil
	}
	mq, err := publish.Connect(publish.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    os.Getenv(MQTTPasswordEnvVar),
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
	})
	if err != nil {
		_ = csvSink.Close()
		return nil, err
	}
	logging.Info("Publishing pages", zap.String("broker", cfg.MQTT.Broker), zap.String("topic", mq.Topic(0)))
	return stream.MultiSink{csvSink, mq}, nil
}

func printStats(p *ui.Printer, stats stream.Stats, files []string, elapsed time.Duration) {
	p.Newline()
	p.Println(streamSummary(stats, files, elapsed).SetWidth(p.Width()).Render())
}

// streamSummary lists page counts per unit and the CSV files written.
func streamSummary(stats stream.Stats, files []string, elapsed time.Duration) *ui.Result {
	result := ui.NewSuccessResult("Stream stopped",
		ui.Param{Key: "Pages", Value: fmt.Sprintf("%d", stats.Pages)},
		ui.Param{Key: "Dropped", Value: fmt.Sprintf("%d", stats.Dropped)},
		ui.Param{Key: "Duration", Value: elapsed.Round(time.Second).String()},
	)
	for _, unit := range sortedUnits(stats.PerUnit) {
		result.AddDetail(fmt.Sprintf("Unit %d", unit), fmt.Sprintf("%d pages", stats.PerUnit[unit]))
	}
	for _, f := range files {
		result.AddDetail("File", f)
	}
	return result
}

func sortedUnits(m map[uint8]int) []uint8 {
	out := make([]uint8, 0, len(m))
	for u := 1; u <= 255; u++ {
		if _, ok := m[uint8(u)]; ok {
			out = append(out, uint8(u))
		}
	}
	return out
}

