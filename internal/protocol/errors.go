package protocol

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches one of these
// with errors.Is.
var (
	// ErrNoReply means the deadline elapsed without a matching reply.
	ErrNoReply = errors.New("no reply")
	// ErrChecksumMismatch means a chunk or image checksum did not verify.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrImageTooLarge means the image cannot be addressed with 8-bit chunk
	// indices or the receiver reported it has no room for it.
	ErrImageTooLarge = errors.New("image too large")
	// ErrInvalidLength means a frame does not have the required wire size.
	ErrInvalidLength = errors.New("invalid frame length")
	// ErrRadio means the transceiver reported a failure.
	ErrRadio = errors.New("radio error")
	// ErrTransfer means the receiver kept reporting errors after every
	// retransmission round was used.
	ErrTransfer = errors.New("transfer failed")
	// ErrWrongMode means a command was addressed with a mode it does not accept.
	ErrWrongMode = errors.New("wrong addressing mode")
)

// Error describes a failed protocol operation.
type Error struct {
	Op      string        // operation, e.g. "enable" or "start-transfer"
	Kind    error         // one of the Err* kinds
	Address TargetAddress // target of the operation, zero if none
	Err     error         // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if !e.Address.IsZero() {
		msg += " " + e.Address.String()
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error, addr TargetAddress, cause error) *Error {
	return &Error{Op: op, Kind: kind, Address: addr, Err: cause}
}

func lengthError(op string, got, want int) *Error {
	return &Error{Op: op, Kind: ErrInvalidLength, Err: fmt.Errorf("got %d bytes, want %d", got, want)}
}
