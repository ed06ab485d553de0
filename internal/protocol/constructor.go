package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command is a hub request: its opcode, the reply it expects (0 when data
// frames follow directly) and the addressing modes it accepts.
type Command struct {
	Name   string
	Opcode Opcode
	Reply  Opcode
	Modes  []Mode
}

// Command set.
var (
	CmdEnable             = Command{Name: "enable", Opcode: OpEnable, Reply: OpEnableAck, Modes: []Mode{ModeGroup}}
	CmdDisable            = Command{Name: "disable", Opcode: OpDisable, Reply: OpDisableAck, Modes: []Mode{ModeGroup}}
	CmdRangeCheck         = Command{Name: "range-check", Opcode: OpRangeCheck, Reply: OpRangeAck, Modes: []Mode{ModeGroup}}
	CmdStartStreaming     = Command{Name: "start-streaming", Opcode: OpStartStreaming, Modes: []Mode{ModeGroup, ModeIndividual}}
	CmdRequestProgramming = Command{Name: "request-programming", Opcode: OpRequestProgramming, Reply: OpReadyAck, Modes: []Mode{ModeIndividual}}
	CmdStartTransfer      = Command{Name: "start-transfer", Opcode: OpStartTransfer, Reply: OpStartAck, Modes: []Mode{ModeIndividual}}
)

// Accepts reports whether the command can be sent to addr.
func (c Command) Accepts(addr TargetAddress) bool {
	for _, m := range c.Modes {
		if m == addr.Mode() {
			return true
		}
	}
	return false
}

// Build returns the wire frame for the command addressed to addr. Fields
// are written after the address byte; the frame is padded with zeros to
// at least CommandFrameSize.
func (c Command) Build(addr TargetAddress, fields ...byte) ([]byte, error) {
	if !c.Accepts(addr) {
		return nil, newError(c.Name, ErrWrongMode, addr, fmt.Errorf("%s does not accept %s addressing", c.Name, addr.Mode()))
	}
	size := 2 + len(fields)
	if size < CommandFrameSize {
		size = CommandFrameSize
	}
	frame := make([]byte, size)
	frame[0] = byte(c.Opcode)
	frame[1] = addr.Byte()
	copy(frame[2:], fields)
	return frame, nil
}

// BuildStartTransfer returns the start-transfer frame announcing an image
// of size bytes (after padding) with whole-image checksum crc.
//
//	[0]     0x0A
//	[1]     id
//	[2-3]   size (little-endian u16)
//	[4-7]   crc  (little-endian u32)
//	[8-124] zero
func BuildStartTransfer(addr TargetAddress, size uint16, crc uint32) ([]byte, error) {
	var fields [StartTransferSize - 2]byte
	binary.LittleEndian.PutUint16(fields[0:2], size)
	binary.LittleEndian.PutUint32(fields[2:6], crc)
	frame, err := CmdStartTransfer.Build(addr, fields[:]...)
	if err != nil {
		return nil, err
	}
	padded := make([]byte, ChunkFrameSize)
	copy(padded, frame)
	return padded, nil
}
