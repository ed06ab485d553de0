package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/muurk/lorahub/internal/bridge"
	"github.com/muurk/lorahub/internal/config"
	"github.com/muurk/lorahub/internal/discovery"
	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/radio"
	"github.com/muurk/lorahub/internal/sim"
)

// hub is an open concentrator with an engine on top of it.
type hub struct {
	cfg    *config.Config
	radio  radio.Transceiver
	engine *protocol.Engine
	close  func() error
}

func loadConfig() (*config.Config, error) {
	path, err := resolvedConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if timeoutMs > 0 {
		cfg.ReplyTimeoutMs = timeoutMs
	}
	if bridgeURL != "" {
		cfg.BridgeURL = bridgeURL
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openHub connects to the concentrator, tunes it to the control channel
// and starts it.
func openHub(ctx context.Context) (*hub, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tr, closeRadio, err := dialRadio(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := tr.Configure(cfg.ControlParams()); err != nil {
		_ = closeRadio()
		return nil, fmt.Errorf("failed to configure concentrator: %w", err)
	}
	if err := radio.StartWithRetry(ctx, tr, radio.DefaultStartAttempts, radio.DefaultStartDelay); err != nil {
		_ = closeRadio()
		return nil, err
	}
	logging.Info("Concentrator started", zap.String("channel", cfg.ControlParams().String()))

	eng := protocol.NewEngine(tr)
	eng.ReplyTimeout = cfg.ReplyTimeout()
	eng.PollInterval = cfg.PollInterval()
	eng.SendDuration = cfg.SendDuration()
	eng.ReceiveDuration = cfg.ReceiveDuration()

	return &hub{
		cfg:    cfg,
		radio:  tr,
		engine: eng,
		close: func() error {
			return errors.Join(tr.Stop(), closeRadio())
		},
	}, nil
}

func dialRadio(ctx context.Context, cfg *config.Config) (radio.Transceiver, func() error, error) {
	if simUnits != "" {
		ids, err := protocol.ParseUnits(simUnits)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --sim: %w", err)
		}
		pop := sim.New(sim.Units(ids...)...)
		pop.ProgrammingFrequency = cfg.ProgrammingFrequency
		simCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		go func() { _ = pop.Run(simCtx) }()
		logging.Info("Using simulated population", zap.String("units", simUnits))
		return pop, func() error { cancel(); return nil }, nil
	}

	url := cfg.BridgeURL
	if url == "" {
		hub, err := discovery.NewScanner().FindHub(ctx, "")
		if err != nil {
			return nil, nil, fmt.Errorf("no --bridge given and discovery failed: %w", err)
		}
		url = hub.URL()
		logging.Info("Discovered bridge", zap.String("hub", hub.String()))
	}
	client, err := bridge.Dial(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// targets parses --units.
func targets() ([]uint8, error) {
	if unitList == "" {
		return nil, errors.New("no units given; use --units, e.g. --units 1,3")
	}
	return protocol.ParseUnits(unitList)
}

func groupTarget() (protocol.TargetAddress, error) {
	units, err := targets()
	if err != nil {
		return protocol.TargetAddress{}, err
	}
	return protocol.GroupOf(units...)
}
