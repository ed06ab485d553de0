// Package protocol implements the hub side of the transmitter command
// protocol.
//
// # Frames
//
// Every hub command starts with an opcode byte followed by an address byte.
// Commands are padded to CommandFrameSize; the start-transfer command is
// padded to the chunk frame size because the receiver's bootloader only
// accepts full-size frames on the programming channel.
//
//	Request  Meaning                          Reply
//	0x01     enable (group)                   0x02 enable-ack (mask)
//	0x03     start streaming (group)          none, pages follow
//	0x03     raw page stream (individual)     none, pages follow
//	0x04     disable (group)                  0x05 disable-ack (mask)
//	0x06     range check (group)              0x07 range-ack (mask)
//	0x08     request programming (individual) 0x09 ready-ack (id)
//	0x0A     start transfer (individual)      0x0B start-ack
//	chunk    firmware chunk                   0x0C transfer result
//
// # Addressing
//
// TargetAddress is either a group mask (bit i addresses unit i+1) or a
// single transmitter id. Each Command declares which mode it accepts and
// building a frame with the wrong mode fails. A reply matches a group
// request when its mask overlaps the request mask; it matches an individual
// request only when it echoes the same id.
//
// # Engine
//
// Engine drives request/acknowledge exchanges over a radio.Transceiver. All
// waits poll Receive on a ticker, discard frames whose radio CRC failed, and
// are bounded by both a deadline and the caller's context.
//
//	eng := protocol.NewEngine(tr)
//	addr, _ := protocol.GroupOf(1, 3)
//	accepted, err := eng.Enable(ctx, addr)
//
// Group exchanges return the mask of units that answered before the
// deadline. A partial answer is not an error.
//
// # Errors
//
// Failures are reported as *Error values wrapping one of the sentinel kinds
// (ErrNoReply, ErrRadio, ErrInvalidLength, ...). Use errors.Is to test for a
// kind.
package protocol
