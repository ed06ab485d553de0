package ota

import "fmt"

// State is a step of a programming session.
type State int

const (
	StateAwaitPresence State = iota
	StateRequestSent
	StateAwaitReady
	StateGotReady
	StateStartSent
	StateAwaitStartAck
	StateTransferring
	StateAwaitResult
	StateRetransmitting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateAwaitPresence:  "AWAIT_PRESENCE",
	StateRequestSent:    "SENT_REQUEST",
	StateAwaitReady:     "AWAIT_READY",
	StateGotReady:       "GOT_READY",
	StateStartSent:      "SENT_START",
	StateAwaitStartAck:  "AWAIT_START_ACK",
	StateTransferring:   "TRANSFERRING",
	StateAwaitResult:    "AWAIT_RESULT",
	StateRetransmitting: "RETRANSMITTING",
	StateDone:           "DONE",
	StateFailed:         "FAILED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the session has ended.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Event is a progress notification. Chunk and Total are set while chunks
// are being sent; Round counts retransmission rounds (0 for the first pass).
type Event struct {
	State State
	Chunk int
	Total int
	Round int
}
