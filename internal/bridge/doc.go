// Package bridge exposes a concentrator over a WebSocket so that the hub
// software can run on a different machine from the radio.
//
// The wire format is one JSON request per WebSocket text message, each
// answered by exactly one response with the same id:
//
//	{"id":7,"method":"send","params":{"payload":"AQUA"}}
//	{"id":7}
//	{"id":8,"method":"receive"}
//	{"id":8,"result":[{"payload":"AgU=","status":1,"rssi":-71}]}
//
// Methods map one to one onto radio.Transceiver: configure, start, stop,
// send, tx_status and receive. Client implements radio.Transceiver on top
// of that, so the protocol engines run unchanged against a remote radio.
//
// A Server serves one client at a time; a second connection is refused
// with 409 Conflict while the first is open.
package bridge
