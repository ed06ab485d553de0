// Package radio defines the boundary between the hub protocol engines and
// the concentrator that actually puts frames on air.
//
// The concentrator itself (HAL, SPI, RF chains) lives outside this module.
// Engines only see the Transceiver interface: a non-blocking Send whose
// completion is polled through TxStatus, and a non-blocking Receive that
// returns whatever frames arrived since the last call.
//
// Loopback is an in-memory Transceiver with a scripted responder. It backs
// the protocol and OTA tests and can be wrapped by the simulator.
package radio
