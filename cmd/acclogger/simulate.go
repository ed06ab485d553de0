package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/lorahub/internal/bridge"
	"github.com/muurk/lorahub/internal/discovery"
	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/sim"
	"github.com/muurk/lorahub/internal/version"
)

var (
	simListen       string
	simInstance     string
	simPopulation   string
	simDropEvery    int
	simPageInterval time.Duration
	simNoAdvertise  bool
)

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simListen, "listen", ":8765", "Address the bridge listens on")
	f.StringVar(&simInstance, "name", "", "mDNS instance name (default: lorahub-sim-<hostname>)")
	f.StringVar(&simPopulation, "population", "1,2,3,4,5,6,7,8", "Simulated unit numbers")
	f.IntVar(&simDropEvery, "drop-every", 0, "Lose every nth firmware chunk on the first pass")
	f.DurationVar(&simPageInterval, "page-interval", sim.DefaultPageInterval, "Time between pages from each streaming unit")
	f.BoolVar(&simNoAdvertise, "no-advertise", false, "Do not announce the bridge over mDNS")
	rootCmd.AddCommand(simulateCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a simulated population over a radio bridge",
	Long: `Run a radio bridge backed by simulated transmitters, so that the other
commands can be tried without hardware. The bridge is announced over mDNS
unless --no-advertise is given.`,
	Example: `  # Terminal 1
  acclogger simulate --population 1,2,3,42 --drop-every 7

  # Terminal 2
  acclogger check --units 1,2,3
  acclogger program --units 42 --file program.bin --yes`,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ids, err := protocol.ParseUnits(simPopulation)
	if err != nil {
		return fmt.Errorf("invalid --population: %w", err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	pop := sim.New(sim.Units(ids...)...)
	pop.ProgrammingFrequency = cfg.ProgrammingFrequency
	pop.PageInterval = simPageInterval
	pop.Corrupt = sim.DropEvery(simDropEvery)
	go func() { _ = pop.Run(ctx) }()

	instance := simInstance
	if instance == "" {
		host, _ := os.Hostname()
		instance = "lorahub-sim-" + host
	}

	var advert *zeroconf.Server
	defer func() {
		if advert != nil {
			advert.Shutdown()
		}
	}()

	srv := bridge.NewServer(pop)
	return srv.ListenAndServe(ctx, simListen, discovery.DefaultPath, func(addr net.Addr) {
		port := addr.(*net.TCPAddr).Port
		fmt.Printf("Simulated population %v serving on ws://localhost:%d%s\n", ids, port, discovery.DefaultPath)
		if simNoAdvertise {
			return
		}
		a, err := discovery.Advertise(instance, port, discovery.DefaultPath, "version="+version.Version, "sim=true")
		if err != nil {
			logging.Warn("Failed to advertise bridge", zap.Error(err))
			return
		}
		advert = a
		fmt.Printf("Advertised as %q (%s)\n", instance, discovery.ServiceType)
	})
}
