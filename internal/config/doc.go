// Package config loads and saves the hub configuration file.
//
// The file is YAML and holds the concentrator radio settings, the protocol
// timing knobs and the output locations. It is stored in the
// platform-appropriate location unless a path is given explicitly or
// LORAHUB_CONFIG is set:
//   - Linux: $XDG_CONFIG_HOME/lorahub/config.yaml or $HOME/.config/lorahub/config.yaml
//   - macOS: $HOME/.config/lorahub/config.yaml
//   - Windows: %AppData%\lorahub\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	params := cfg.ControlParams()
//
// Load starts from Default() and overlays whatever the file sets, so a
// config file only needs the keys that differ from the stock hub.
//
// # Radio Channels
//
// ControlParams describes the channel used for commands and telemetry.
// ProgrammingParams switches to the programming frequency with the fixed
// modulation the transmitters' bootloader listens on (BW250, SF7, CR 4/5).
package config
