package telemetry

import (
	"errors"
	"fmt"
)

// Page geometry.
const (
	SamplesPerPage = 28
	remainderBytes = (SamplesPerPage + 1) / 2
	signBytes      = (SamplesPerPage + 7) / 8

	axisCount = 3

	lowOffset  = 0
	remOffset  = lowOffset + SamplesPerPage*axisCount
	signOffset = remOffset + remainderBytes*axisCount

	// PageSize is the exact wire size of a page.
	PageSize = signOffset + signBytes*axisCount

	// MinSample and MaxSample bound a 12-bit signed sample.
	MinSample = -2048
	MaxSample = 2047
)

var (
	// ErrInvalidLength is returned when a buffer is not exactly PageSize bytes.
	ErrInvalidLength = errors.New("invalid page length")
	// ErrSampleRange is returned when encoding a value outside 12-bit range.
	ErrSampleRange = errors.New("sample out of 12-bit range")
)

// Axis identifies one of the three accelerometer axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Page is one decoded telemetry record.
type Page struct {
	X [SamplesPerPage]int16
	Y [SamplesPerPage]int16
	Z [SamplesPerPage]int16
}

func (p *Page) axis(a Axis) *[SamplesPerPage]int16 {
	switch a {
	case AxisY:
		return &p.Y
	case AxisZ:
		return &p.Z
	default:
		return &p.X
	}
}

// DecodePage reconstructs the three sample arrays from a packed page.
func DecodePage(raw []byte) (*Page, error) {
	if len(raw) != PageSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(raw), PageSize)
	}

	page := &Page{}
	for a := AxisX; a <= AxisZ; a++ {
		low := raw[lowOffset+int(a)*SamplesPerPage:]
		rem := raw[remOffset+int(a)*remainderBytes:]
		sign := raw[signOffset+int(a)*signBytes:]
		out := page.axis(a)

		for i := 0; i < SamplesPerPage; i++ {
			v := uint16(low[i])
			if i%2 == 0 {
				v |= (uint16(rem[i/2]) << 8) & 0x0F00
			} else {
				v |= (uint16(rem[i/2]) << 4) & 0x0F00
			}
			if sign[i/8]&(1<<(i%8)) != 0 {
				v |= 0xF000
			}
			out[i] = int16(v)
		}
	}
	return page, nil
}

// Encode packs the page into its wire layout. It is the exact inverse of
// DecodePage for samples within [MinSample, MaxSample].
func (p *Page) Encode() ([]byte, error) {
	raw := make([]byte, PageSize)
	for a := AxisX; a <= AxisZ; a++ {
		low := raw[lowOffset+int(a)*SamplesPerPage:]
		rem := raw[remOffset+int(a)*remainderBytes:]
		sign := raw[signOffset+int(a)*signBytes:]
		in := p.axis(a)

		for i, s := range in {
			if s < MinSample || s > MaxSample {
				return nil, fmt.Errorf("%w: %s[%d] = %d", ErrSampleRange, a, i, s)
			}
			u := uint16(s)
			low[i] = byte(u)
			nibble := byte(u>>8) & 0x0F
			if i%2 == 0 {
				rem[i/2] |= nibble
			} else {
				rem[i/2] |= nibble << 4
			}
			if s < 0 {
				sign[i/8] |= 1 << (i % 8)
			}
		}
	}
	return raw, nil
}
