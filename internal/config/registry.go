package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "lorahub"
	configFile = "config.yaml"

	// ConfigPathEnvVar overrides the default config location.
	ConfigPathEnvVar = "LORAHUB_CONFIG"
)

// saveMu serialises writers within the process; the rename makes each
// write atomic for readers.
var saveMu sync.Mutex

const fileHeader = `# LoRa hub configuration
# Frequencies are in Hz, bandwidth in kHz, durations in milliseconds.
# Written by "acclogger config init"; unknown keys are ignored.

`

// GetConfigDir returns the per-user configuration directory:
//   - Linux and other Unixes: $XDG_CONFIG_HOME/lorahub, else ~/.config/lorahub
//   - macOS: ~/.config/lorahub
//   - Windows: %AppData%\lorahub
func GetConfigDir() (string, error) {
	base, err := userConfigBase()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appName), nil
}

func userConfigBase() (string, error) {
	switch runtime.GOOS {
	case "windows":
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine AppData directory: %w", err)
		}
		return dir, nil
	case "darwin":
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg, nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config"), nil
}

// GetConfigPath returns $LORAHUB_CONFIG when set, otherwise config.yaml in
// GetConfigDir.
func GetConfigPath() (string, error) {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func resolve(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	p, err := GetConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}
	return p, nil
}

// Load reads the configuration at path. An empty path means the default
// location. A missing file yields Default(). Fields absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	path, err := resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Default(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save validates c and writes it to path (default location when empty)
// through a temporary file in the same directory, so a crash never leaves
// a truncated config behind.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	path, err := resolve(path)
	if err != nil {
		return err
	}
	body, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	saveMu.Lock()
	defer saveMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+configFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(append([]byte(fileHeader), body...))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
