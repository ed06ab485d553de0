// Package sim simulates a population of accelerometer transmitters behind a
// concentrator. A Population is a radio.Transceiver: frames the hub sends
// are answered the way field units answer them, and a background loop
// feeds telemetry pages and presence beacons into the receive queue.
//
// # Units
//
// Units 1..8 own a bit in the group mask (bit id-1) and answer enable,
// disable and range-check with a one-bit acknowledgement each. Any unit
// answers individually addressed requests.
//
// # Programming
//
// A unit that acknowledges request-programming moves to the programming
// channel (when ProgrammingFrequency is set it hears nothing else), accepts
// a start-transfer, collects chunks and reports a transfer-result after
// each round. Corrupt lets tests and the simulate command lose chunks on
// purpose; the unit then asks for exactly those chunks again.
package sim
