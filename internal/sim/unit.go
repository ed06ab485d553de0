package sim

import (
	"math"

	"github.com/muurk/lorahub/internal/ota"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/telemetry"
)

// DefaultRSSI is the signal strength attached to frames from units that
// do not set one.
const DefaultRSSI = -72

// UnitConfig describes one simulated transmitter.
type UnitConfig struct {
	ID uint8
	// Absent units hear nothing and send nothing.
	Absent bool
	// FlashSize is the largest image the unit accepts; zero means
	// ota.MaxImageSize.
	FlashSize int
	RSSI      float32
}

// Units returns a present, default configuration for each id.
func Units(ids ...uint8) []UnitConfig {
	out := make([]UnitConfig, len(ids))
	for i, id := range ids {
		out[i] = UnitConfig{ID: id}
	}
	return out
}

// UnitState is a snapshot of a unit.
type UnitState struct {
	ID        uint8
	Enabled   bool
	Streaming bool
	// Programs counts completed firmware updates.
	Programs int
	Firmware []byte
}

type unit struct {
	UnitConfig
	enabled   bool
	streaming bool
	programs  int
	firmware  []byte
	pages     int
}

func newUnit(cfg UnitConfig) *unit {
	if cfg.FlashSize <= 0 {
		cfg.FlashSize = ota.MaxImageSize
	}
	if cfg.RSSI == 0 {
		cfg.RSSI = DefaultRSSI
	}
	return &unit{UnitConfig: cfg}
}

// groupBit is the unit's mask bit, or 0 for units outside the group range.
func (u *unit) groupBit() uint8 {
	if u.ID == 0 || u.ID > protocol.MaxGroupUnit {
		return 0
	}
	return 1 << (u.ID - 1)
}

// channel is the IF chain the unit transmits on.
func (u *unit) channel() uint8 {
	if b := u.groupBit(); b != 0 {
		return u.ID - 1
	}
	return 0
}

func (u *unit) state() UnitState {
	return UnitState{
		ID:        u.ID,
		Enabled:   u.enabled,
		Streaming: u.streaming,
		Programs:  u.programs,
		Firmware:  append([]byte(nil), u.firmware...),
	}
}

// nextPage synthesises one page of a slow three-axis oscillation whose
// phase advances from page to page.
func (u *unit) nextPage() *telemetry.Page {
	var page telemetry.Page
	base := u.pages * telemetry.SamplesPerPage
	for i := 0; i < telemetry.SamplesPerPage; i++ {
		t := float64(base+i) / 16
		phase := float64(u.ID)
		page.X[i] = int16(1500 * math.Sin(t+phase))
		page.Y[i] = int16(1500 * math.Cos(t+phase))
		page.Z[i] = int16(400*math.Sin(t/3) - 1000)
	}
	u.pages++
	return &page
}
