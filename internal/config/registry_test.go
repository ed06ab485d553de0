package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/lorahub/internal/radio"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "lorahub") {
		t.Errorf("GetConfigDir() = %v, should contain 'lorahub'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") && os.Getenv("XDG_CONFIG_HOME") == "" {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only honoured on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	want := filepath.Join(dir, "lorahub", "config.yaml")
	if got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReplyTimeout() != 2*time.Second {
		t.Errorf("ReplyTimeout() = %v, want 2s", cfg.ReplyTimeout())
	}
	if cfg.MaxRetransmitRounds != 3 {
		t.Errorf("MaxRetransmitRounds = %d, want 3", cfg.MaxRetransmitRounds)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	data := []byte(`
version: 1
bandwidth: 250
spread_factor: 9
control_frequency: 868100000
send_duration_ms: 5000
receive_duration_ms: 3000
mqtt:
  broker: tcp://localhost:1883
  topic_prefix: site1
  qos: 1
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Bandwidth != 250 || cfg.SpreadFactor != 9 {
		t.Errorf("radio = BW%d SF%d, want BW250 SF9", cfg.Bandwidth, cfg.SpreadFactor)
	}
	if cfg.ProgrammingFrequency != 869400000 {
		t.Errorf("ProgrammingFrequency = %d, want default 869400000", cfg.ProgrammingFrequency)
	}
	if cfg.SendDuration() != 5*time.Second || cfg.ReceiveDuration() != 3*time.Second {
		t.Errorf("durations = %v/%v", cfg.SendDuration(), cfg.ReceiveDuration())
	}
	if cfg.MQTT == nil || cfg.MQTT.TopicPrefix != "site1" || cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "version", mutate: func(c *Config) { c.Version = 2 }},
		{name: "bandwidth", mutate: func(c *Config) { c.Bandwidth = 62 }},
		{name: "spread factor", mutate: func(c *Config) { c.SpreadFactor = 13 }},
		{name: "coding rate", mutate: func(c *Config) { c.CodingRate = 0 }},
		{name: "control frequency", mutate: func(c *Config) { c.ControlFrequency = 0 }},
		{name: "programming frequency", mutate: func(c *Config) { c.ProgrammingFrequency = 0 }},
		{name: "reply timeout", mutate: func(c *Config) { c.ReplyTimeoutMs = 0 }},
		{name: "poll interval", mutate: func(c *Config) { c.PollIntervalMs = -1 }},
		{name: "negative rounds", mutate: func(c *Config) { c.MaxRetransmitRounds = -1 }},
		{name: "mqtt broker", mutate: func(c *Config) { c.MQTT = &MQTTConfig{} }},
		{name: "mqtt qos", mutate: func(c *Config) { c.MQTT = &MQTTConfig{Broker: "tcp://x:1883", QoS: 3} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestChannelParams(t *testing.T) {
	cfg := Default()

	ctl := cfg.ControlParams()
	if ctl.Frequency != 869120000 || ctl.SpreadingFactor != 8 || ctl.Modulation != radio.ModulationLoRa {
		t.Errorf("ControlParams() = %v", ctl)
	}
	if ctl.ReceiverFrequency != cfg.ReceiverFrequency || ctl.IFChannels != cfg.Channels {
		t.Error("ControlParams() should carry receiver settings")
	}

	prog := cfg.ProgrammingParams()
	if prog.Frequency != 869400000 || prog.Bandwidth != 250 || prog.SpreadingFactor != 7 || prog.CodingRate != 1 {
		t.Errorf("ProgrammingParams() = %v", prog)
	}
	if err := prog.Validate(); err != nil {
		t.Errorf("ProgrammingParams().Validate() error = %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.ChunkDelayMs = 25
	cfg.BridgeURL = "ws://hub.local:8765/radio"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ChunkDelay() != 25*time.Millisecond {
		t.Errorf("ChunkDelay() = %v, want 25ms", loaded.ChunkDelay())
	}
	if loaded.BridgeURL != cfg.BridgeURL {
		t.Errorf("BridgeURL = %q, want %q", loaded.BridgeURL, cfg.BridgeURL)
	}
	if loaded.Channels != cfg.Channels {
		t.Errorf("Channels = %v, want %v", loaded.Channels, cfg.Channels)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bandwidth: [oops"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() = nil error, want parse failure")
	}
}

func TestConfigPathEnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "hub.yaml")
	t.Setenv(ConfigPathEnvVar, want)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}

	if err := Default().Save(""); err != nil {
		t.Fatalf("Save(\"\") error = %v", err)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Save(\"\") did not honour %s: %v", ConfigPathEnvVar, err)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.SpreadFactor = 3
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err == nil {
		t.Fatal("Save() = nil error for invalid config")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid config was written")
	}
}
