package protocol

import "fmt"

// Opcode is the first byte of every command and reply.
type Opcode byte

const (
	OpEnable             Opcode = 0x01
	OpEnableAck          Opcode = 0x02
	OpStartStreaming     Opcode = 0x03
	OpDisable            Opcode = 0x04
	OpDisableAck         Opcode = 0x05
	OpRangeCheck         Opcode = 0x06
	OpRangeAck           Opcode = 0x07
	OpRequestProgramming Opcode = 0x08
	OpReadyAck           Opcode = 0x09
	OpStartTransfer      Opcode = 0x0A
	OpStartAck           Opcode = 0x0B
	OpTransferResult     Opcode = 0x0C
)

var opcodeNames = map[Opcode]string{
	OpEnable:             "enable",
	OpEnableAck:          "enable-ack",
	OpStartStreaming:     "start-streaming",
	OpDisable:            "disable",
	OpDisableAck:         "disable-ack",
	OpRangeCheck:         "range-check",
	OpRangeAck:           "range-ack",
	OpRequestProgramming: "request-programming",
	OpReadyAck:           "ready-ack",
	OpStartTransfer:      "start-transfer",
	OpStartAck:           "start-ack",
	OpTransferResult:     "transfer-result",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(o))
}

// Wire sizes.
const (
	// CommandFrameSize is the size of every plain command frame:
	// opcode, address and one reserved zero byte.
	CommandFrameSize = 3

	// ChunkDataSize is the number of image bytes carried by one chunk.
	ChunkDataSize = 120
	// ChunkFrameSize is index + data + CRC-32.
	ChunkFrameSize = 1 + ChunkDataSize + 4

	// StartTransferSize is the meaningful prefix of a start-transfer
	// frame: opcode, id, size u16, crc u32. The frame itself is padded to
	// ChunkFrameSize.
	StartTransferSize = 8

	// StartAckSize is opcode, id, rssi i16, oversize flag.
	StartAckSize = 5

	// TransferResultHeaderSize is opcode, id, status, error headers,
	// error packets. Error indices follow as u16 pairs.
	TransferResultHeaderSize = 5

	// ReplyMinSize is opcode and address, the least any reply carries.
	ReplyMinSize = 2
)
