package protocol

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Mode is the addressing mode of a TargetAddress.
type Mode int

const (
	modeNone Mode = iota
	// ModeGroup addresses up to eight units by bit mask.
	ModeGroup
	// ModeIndividual addresses exactly one unit by id.
	ModeIndividual
)

func (m Mode) String() string {
	switch m {
	case ModeGroup:
		return "group"
	case ModeIndividual:
		return "individual"
	default:
		return "none"
	}
}

// MaxGroupUnit is the highest unit number reachable in group mode.
const MaxGroupUnit = 8

// TargetAddress names the transmitter(s) a command applies to. The zero
// value addresses nobody and is rejected by every command.
type TargetAddress struct {
	mode  Mode
	value byte
}

// Group returns a group address for a raw mask. Bit i addresses unit i+1.
func Group(mask uint8) (TargetAddress, error) {
	if mask == 0 {
		return TargetAddress{}, fmt.Errorf("group mask must address at least one unit")
	}
	return TargetAddress{mode: ModeGroup, value: mask}, nil
}

// GroupOf returns the group address covering units (1..8).
func GroupOf(units ...uint8) (TargetAddress, error) {
	var mask uint8
	for _, u := range units {
		if u < 1 || u > MaxGroupUnit {
			return TargetAddress{}, fmt.Errorf("unit %d out of group range 1-%d", u, MaxGroupUnit)
		}
		mask |= 1 << (u - 1)
	}
	return Group(mask)
}

// Individual returns the address of a single transmitter (1..255).
func Individual(id uint8) (TargetAddress, error) {
	if id == 0 {
		return TargetAddress{}, fmt.Errorf("transmitter id must be 1-255")
	}
	return TargetAddress{mode: ModeIndividual, value: id}, nil
}

// ParseUnits parses a comma-separated list of unit numbers such as "1,3,5".
func ParseUnits(s string) ([]uint8, error) {
	var units []uint8
	seen := make(map[uint8]bool)
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 10, 8)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid unit %q (want 1-255)", field)
		}
		if !seen[uint8(n)] {
			seen[uint8(n)] = true
			units = append(units, uint8(n))
		}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no units given")
	}
	return units, nil
}

// Mode returns the addressing mode.
func (a TargetAddress) Mode() Mode { return a.mode }

// IsZero reports whether a is the zero address.
func (a TargetAddress) IsZero() bool { return a.mode == modeNone }

// Byte returns the address byte as it appears on the wire.
func (a TargetAddress) Byte() byte { return a.value }

// Mask returns the group mask, or 0 for an individual address.
func (a TargetAddress) Mask() uint8 {
	if a.mode != ModeGroup {
		return 0
	}
	return a.value
}

// ID returns the transmitter id, or 0 for a group address.
func (a TargetAddress) ID() uint8 {
	if a.mode != ModeIndividual {
		return 0
	}
	return a.value
}

// Units lists the unit numbers covered by the address in ascending order.
func (a TargetAddress) Units() []uint8 {
	switch a.mode {
	case ModeIndividual:
		return []uint8{a.value}
	case ModeGroup:
		return MaskUnits(a.value)
	}
	return nil
}

// Contains reports whether unit is addressed.
func (a TargetAddress) Contains(unit uint8) bool {
	switch a.mode {
	case ModeIndividual:
		return unit == a.value
	case ModeGroup:
		return unit >= 1 && unit <= MaxGroupUnit && a.value&(1<<(unit-1)) != 0
	}
	return false
}

// Matches reports whether a reply address byte answers a request sent to a.
// Group replies must overlap the request mask; individual replies must echo
// the id exactly.
func (a TargetAddress) Matches(b byte) bool {
	switch a.mode {
	case ModeGroup:
		return a.value&b != 0
	case ModeIndividual:
		return a.value == b
	}
	return false
}

func (a TargetAddress) String() string {
	switch a.mode {
	case ModeGroup:
		return fmt.Sprintf("group 0b%08b", a.value)
	case ModeIndividual:
		return fmt.Sprintf("unit %d", a.value)
	}
	return "none"
}

// MaskUnits lists the unit numbers whose bits are set in mask.
func MaskUnits(mask uint8) []uint8 {
	units := make([]uint8, 0, bits.OnesCount8(mask))
	for i := uint8(0); i < MaxGroupUnit; i++ {
		if mask&(1<<i) != 0 {
			units = append(units, i+1)
		}
	}
	return units
}
