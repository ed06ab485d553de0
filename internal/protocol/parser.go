package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseReply splits a received payload into opcode and address byte.
// ok is false for payloads too short to be a reply.
func ParseReply(payload []byte) (op Opcode, address byte, ok bool) {
	if len(payload) < ReplyMinSize {
		return 0, 0, false
	}
	return Opcode(payload[0]), payload[1], true
}

// StartAck is the receiver's answer to start-transfer.
type StartAck struct {
	ID       uint8
	RSSI     int16 // signal strength the receiver measured on the start frame
	Oversize bool  // the receiver has no room for the announced image
}

// ParseStartAck decodes a 0x0B frame.
func ParseStartAck(payload []byte) (StartAck, error) {
	if len(payload) < StartAckSize {
		return StartAck{}, lengthError("start-ack", len(payload), StartAckSize)
	}
	if Opcode(payload[0]) != OpStartAck {
		return StartAck{}, fmt.Errorf("not a start-ack: %s", Opcode(payload[0]))
	}
	return StartAck{
		ID:       payload[1],
		RSSI:     int16(binary.LittleEndian.Uint16(payload[2:4])),
		Oversize: payload[4] != 0,
	}, nil
}

// TransferResult is the receiver's verdict after a batch of chunks.
type TransferResult struct {
	ID           uint8
	Status       uint8 // 0 means the image verified
	ErrorHeaders uint8
	ErrorPackets uint8
	// Indices are the chunks the receiver wants again.
	Indices []uint16
}

// OK reports whether the receiver accepted the image.
func (r TransferResult) OK() bool { return r.Status == 0 }

// ParseTransferResult decodes a 0x0C frame. A non-zero ErrorPackets bounds
// how many u16 indices are read; receivers may pad the frame, and bytes past
// the declared indices are ignored. With a zero count every whole u16 in the
// tail is an index. A dangling odd byte is never an error.
func ParseTransferResult(payload []byte) (TransferResult, error) {
	if len(payload) < TransferResultHeaderSize {
		// A bare success may be shortened to opcode, id, status.
		if len(payload) == 3 && Opcode(payload[0]) == OpTransferResult && payload[2] == 0 {
			return TransferResult{ID: payload[1]}, nil
		}
		return TransferResult{}, lengthError("transfer-result", len(payload), TransferResultHeaderSize)
	}
	if Opcode(payload[0]) != OpTransferResult {
		return TransferResult{}, fmt.Errorf("not a transfer-result: %s", Opcode(payload[0]))
	}
	res := TransferResult{
		ID:           payload[1],
		Status:       payload[2],
		ErrorHeaders: payload[3],
		ErrorPackets: payload[4],
	}
	if res.OK() {
		return res, nil
	}
	tail := payload[TransferResultHeaderSize:]
	n := len(tail) / 2
	if res.ErrorPackets > 0 {
		n = min(n, int(res.ErrorPackets))
	}
	res.Indices = make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		res.Indices = append(res.Indices, binary.LittleEndian.Uint16(tail[2*i:]))
	}
	return res, nil
}

// BuildStartAck encodes a 0x0B frame. Used by simulated receivers.
func BuildStartAck(ack StartAck) []byte {
	b := make([]byte, StartAckSize)
	b[0] = byte(OpStartAck)
	b[1] = ack.ID
	binary.LittleEndian.PutUint16(b[2:4], uint16(ack.RSSI))
	if ack.Oversize {
		b[4] = 1
	}
	return b
}

// BuildTransferResult encodes a 0x0C frame. Used by simulated receivers.
func BuildTransferResult(res TransferResult) []byte {
	b := make([]byte, TransferResultHeaderSize, TransferResultHeaderSize+2*len(res.Indices))
	b[0] = byte(OpTransferResult)
	b[1] = res.ID
	b[2] = res.Status
	b[3] = res.ErrorHeaders
	b[4] = res.ErrorPackets
	for _, idx := range res.Indices {
		b = binary.LittleEndian.AppendUint16(b, idx)
	}
	return b
}
