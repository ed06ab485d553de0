package bridge

import (
	"encoding/json"
	"fmt"
)

// Methods.
const (
	MethodConfigure = "configure"
	MethodStart     = "start"
	MethodStop      = "stop"
	MethodSend      = "send"
	MethodTxStatus  = "tx_status"
	MethodReceive   = "receive"
)

// Request is a call from client to server.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// RemoteError is a failure reported by the radio on the far side.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge %s: %s", e.Method, e.Message)
}
