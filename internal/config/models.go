package config

import (
	"fmt"
	"time"

	"github.com/muurk/lorahub/internal/radio"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// Config is the hub configuration file.
// Radio fields mirror the concentrator settings; the *_ms fields govern
// protocol timing.
type Config struct {
	Version int `yaml:"version"`

	Bandwidth      uint16 `yaml:"bandwidth"`     // kHz: 125, 250 or 500
	SpreadFactor   uint8  `yaml:"spread_factor"` // 7..12
	CodingRate     uint8  `yaml:"coding_rate"`   // 1 => 4/5 .. 4 => 4/8
	Preamble       uint16 `yaml:"preamble"`
	TxPower        int8   `yaml:"tx_power"` // dBm
	InvertPolarity bool   `yaml:"invert_polarity,omitempty"`

	ControlFrequency     uint32   `yaml:"control_frequency"`     // Hz
	ProgrammingFrequency uint32   `yaml:"programming_frequency"` // Hz
	ReceiverFrequency    uint32   `yaml:"receiver_frequency"`    // Hz
	Channels             [8]int32 `yaml:"channels,flow"`         // IF offsets, Hz

	SendDurationMs      int `yaml:"send_duration_ms"`
	ReceiveDurationMs   int `yaml:"receive_duration_ms"`
	ReplyTimeoutMs      int `yaml:"reply_timeout_ms"`
	PresenceTimeoutMs   int `yaml:"presence_timeout_ms"`
	PollIntervalMs      int `yaml:"poll_interval_ms"`
	ChunkDelayMs        int `yaml:"chunk_delay_ms"`
	MaxRetransmitRounds int `yaml:"max_retransmit_rounds"`

	LogDir       string      `yaml:"log_dir"`
	FirmwarePath string      `yaml:"firmware_path"`
	BridgeURL    string      `yaml:"bridge_url,omitempty"`
	MQTT         *MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig enables publishing decoded pages to a broker.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Username    string `yaml:"username,omitempty"`
}

// Programming channel modulation. The receivers' bootloader listens with
// these settings regardless of the control channel configuration.
const (
	programmingBandwidth    = 250
	programmingSpreadFactor = 7
	programmingCodingRate   = 1
)

// Default returns a Config populated with the stock hub settings.
func Default() *Config {
	return &Config{
		Version:              CurrentVersion,
		Bandwidth:            125,
		SpreadFactor:         8,
		CodingRate:           1,
		Preamble:             8,
		TxPower:              14,
		ControlFrequency:     869120000,
		ProgrammingFrequency: 869400000,
		ReceiverFrequency:    864500000,
		Channels:             [8]int32{-400000, -200000, 0, 200000, 400000, 600000, 800000, 1000000},
		SendDurationMs:       0,
		ReceiveDurationMs:    0,
		ReplyTimeoutMs:       2000,
		PresenceTimeoutMs:    15000,
		PollIntervalMs:       3,
		ChunkDelayMs:         10,
		MaxRetransmitRounds:  3,
		LogDir:               ".",
		FirmwarePath:         "program.bin",
	}
}

// Validate reports the first setting the hub cannot run with.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if err := c.ControlParams().Validate(); err != nil {
		return fmt.Errorf("control channel: %w", err)
	}
	if c.ProgrammingFrequency == 0 {
		return fmt.Errorf("programming_frequency not set")
	}
	for name, v := range map[string]int{
		"send_duration_ms":      c.SendDurationMs,
		"receive_duration_ms":   c.ReceiveDurationMs,
		"chunk_delay_ms":        c.ChunkDelayMs,
		"max_retransmit_rounds": c.MaxRetransmitRounds,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative (got %d)", name, v)
		}
	}
	for name, v := range map[string]int{
		"reply_timeout_ms":    c.ReplyTimeoutMs,
		"presence_timeout_ms": c.PresenceTimeoutMs,
		"poll_interval_ms":    c.PollIntervalMs,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive (got %d)", name, v)
		}
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker not set")
	}
	if c.MQTT != nil && c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2 (got %d)", c.MQTT.QoS)
	}
	return nil
}

// ControlParams returns the channel used for commands and telemetry.
func (c *Config) ControlParams() radio.ChannelParams {
	return radio.ChannelParams{
		Frequency:         c.ControlFrequency,
		ReceiverFrequency: c.ReceiverFrequency,
		IFChannels:        c.Channels,
		Modulation:        radio.ModulationLoRa,
		Bandwidth:         c.Bandwidth,
		SpreadingFactor:   c.SpreadFactor,
		CodingRate:        c.CodingRate,
		Preamble:          c.Preamble,
		TxPower:           c.TxPower,
		InvertPolarity:    c.InvertPolarity,
	}
}

// ProgrammingParams returns the channel used for firmware transfer.
func (c *Config) ProgrammingParams() radio.ChannelParams {
	p := c.ControlParams()
	p.Frequency = c.ProgrammingFrequency
	p.Bandwidth = programmingBandwidth
	p.SpreadingFactor = programmingSpreadFactor
	p.CodingRate = programmingCodingRate
	return p
}

// SendDuration is how long group enable keeps re-sending.
func (c *Config) SendDuration() time.Duration { return ms(c.SendDurationMs) }

// ReceiveDuration is how long group enable listens after the send window.
func (c *Config) ReceiveDuration() time.Duration { return ms(c.ReceiveDurationMs) }

// ReplyTimeout bounds every single command/ack exchange.
func (c *Config) ReplyTimeout() time.Duration { return ms(c.ReplyTimeoutMs) }

// PresenceTimeout bounds the wait for a unit to show up before programming.
func (c *Config) PresenceTimeout() time.Duration { return ms(c.PresenceTimeoutMs) }

// PollInterval is the sleep between empty receive polls.
func (c *Config) PollInterval() time.Duration { return ms(c.PollIntervalMs) }

// ChunkDelay is the pause before each firmware chunk.
func (c *Config) ChunkDelay() time.Duration { return ms(c.ChunkDelayMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
