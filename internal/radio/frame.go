package radio

import (
	"errors"
	"fmt"
)

// MaxPayloadSize is the largest payload a single frame can carry.
const MaxPayloadSize = 255

// ErrPayloadTooLarge is returned when a frame exceeds MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("payload exceeds 255 bytes")

// Status is the integrity verdict the concentrator attaches to a received frame.
type Status int

const (
	StatusUndefined Status = iota
	StatusOK
	StatusBadChecksum
	StatusUnverified
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "CRC_OK"
	case StatusBadChecksum:
		return "CRC_BAD"
	case StatusUnverified:
		return "NO_CRC"
	case StatusUndefined:
		return "UNDEFINED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Frame is one radio-layer message. Status, RSSI and Channel are only
// meaningful on received frames.
type Frame struct {
	Payload []byte  `json:"payload"`
	Status  Status  `json:"status,omitempty"`
	RSSI    float32 `json:"rssi,omitempty"`
	// Channel is the IF chain the frame arrived on (0..7).
	Channel uint8 `json:"channel,omitempty"`
	// Frequency is the RF center frequency in Hz, when known.
	Frequency uint32 `json:"frequency,omitempty"`
}

// Len returns the payload length.
func (f Frame) Len() int { return len(f.Payload) }

// OK reports whether the frame passed the radio CRC.
func (f Frame) OK() bool { return f.Status == StatusOK }

// Validate checks the frame can be handed to a transceiver.
func (f Frame) Validate() error {
	if len(f.Payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	out := f
	out.Payload = append([]byte(nil), f.Payload...)
	return out
}

func (f Frame) String() string {
	return fmt.Sprintf("Frame{len=%d, status=%s, rssi=%+.0f, chan=%d}", len(f.Payload), f.Status, f.RSSI, f.Channel)
}
