// Package ota delivers firmware images to transmitters over the air.
//
// An Image is split into 120-byte chunks. Each chunk travels as a 125-byte
// frame: the chunk index, the data, and a CRC-32 over index and data in
// little-endian order. The whole padded image carries its own CRC-32 in
// the start-transfer command.
//
// # Session
//
// Programmer.Program runs one session:
//
//	AwaitPresence -> RequestSent -> AwaitReady -> GotReady -> StartSent ->
//	AwaitStartAck -> Transferring -> AwaitResult -> Done
//
// When the receiver reports corrupted chunks the session re-sends exactly
// those chunks (Retransmitting) and waits for a new result, at most
// MaxRounds times. The radio is switched to the programming channel after
// the ready-ack and switched back to the control channel on every exit.
//
// Images are limited to 256 chunks (30720 bytes) because the chunk index
// is a single byte on the wire.
package ota
