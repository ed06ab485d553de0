package radio

import (
	"errors"
	"fmt"
)

// Modulation selects the TX modulation scheme.
type Modulation string

const (
	ModulationLoRa Modulation = "LORA"
	ModulationFSK  Modulation = "FSK"
)

// IFChannelCount is the number of multi-SF receive channels.
const IFChannelCount = 8

// ChannelParams is the radio configuration applied before Start.
type ChannelParams struct {
	// Frequency is the TX center frequency in Hz.
	Frequency uint32 `json:"frequency" yaml:"frequency"`
	// ReceiverFrequency is the RX chain center frequency in Hz.
	ReceiverFrequency uint32 `json:"receiver_frequency,omitempty" yaml:"receiver_frequency,omitempty"`
	// IFChannels are the per-channel offsets from ReceiverFrequency in Hz.
	IFChannels [IFChannelCount]int32 `json:"if_channels" yaml:"if_channels"`

	Modulation      Modulation `json:"modulation" yaml:"modulation"`
	Bandwidth       uint16     `json:"bandwidth_khz" yaml:"bandwidth_khz"`
	SpreadingFactor uint8      `json:"spreading_factor" yaml:"spreading_factor"`
	// CodingRate is the denominator offset: 1 => 4/5 .. 4 => 4/8.
	CodingRate uint8 `json:"coding_rate" yaml:"coding_rate"`
	Preamble   uint16 `json:"preamble" yaml:"preamble"`
	TxPower    int8   `json:"tx_power" yaml:"tx_power"`
	// BitrateKbps and FreqDevKHz apply to FSK only.
	BitrateKbps    float32 `json:"bitrate_kbps,omitempty" yaml:"bitrate_kbps,omitempty"`
	FreqDevKHz     uint8   `json:"fdev_khz,omitempty" yaml:"fdev_khz,omitempty"`
	InvertPolarity bool    `json:"invert_polarity,omitempty" yaml:"invert_polarity,omitempty"`
}

// ErrInvalidParams is wrapped by every ChannelParams validation failure.
var ErrInvalidParams = errors.New("invalid channel parameters")

// Validate rejects combinations the concentrator cannot be configured with.
func (p ChannelParams) Validate() error {
	if p.Frequency == 0 {
		return fmt.Errorf("%w: frequency not set", ErrInvalidParams)
	}
	switch p.Modulation {
	case ModulationLoRa, "":
		switch p.Bandwidth {
		case 125, 250, 500:
		default:
			return fmt.Errorf("%w: bandwidth %d kHz (want 125, 250 or 500)", ErrInvalidParams, p.Bandwidth)
		}
		if p.SpreadingFactor < 7 || p.SpreadingFactor > 12 {
			return fmt.Errorf("%w: spreading factor %d (want 7-12)", ErrInvalidParams, p.SpreadingFactor)
		}
		if p.CodingRate < 1 || p.CodingRate > 4 {
			return fmt.Errorf("%w: coding rate %d (want 1-4)", ErrInvalidParams, p.CodingRate)
		}
	case ModulationFSK:
		if p.BitrateKbps < 0.5 || p.BitrateKbps > 250 {
			return fmt.Errorf("%w: FSK bitrate %.1f kbps (want 0.5-250)", ErrInvalidParams, p.BitrateKbps)
		}
	default:
		return fmt.Errorf("%w: modulation %q", ErrInvalidParams, p.Modulation)
	}
	return nil
}

// CodingRateString renders the coding rate the way datasheets do.
func (p ChannelParams) CodingRateString() string {
	if p.CodingRate < 1 || p.CodingRate > 4 {
		return "?"
	}
	return fmt.Sprintf("4/%d", 4+p.CodingRate)
}

func (p ChannelParams) String() string {
	if p.Modulation == ModulationFSK {
		return fmt.Sprintf("FSK %d Hz %.1f kbps", p.Frequency, p.BitrateKbps)
	}
	return fmt.Sprintf("LoRa %d Hz BW%d SF%d CR%s", p.Frequency, p.Bandwidth, p.SpreadingFactor, p.CodingRateString())
}
