package ota

import (
	"fmt"

	"github.com/muurk/lorahub/internal/protocol"
)

// TransferError is returned when the receiver still reports errors after
// the last retransmission round.
type TransferError struct {
	Rounds int
	Last   protocol.TransferResult
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer to unit %d failed after %d retransmission rounds (status %d, %d chunks bad)",
		e.Last.ID, e.Rounds, e.Last.Status, len(e.Last.Indices))
}

// Is matches protocol.ErrTransfer.
func (e *TransferError) Is(target error) bool {
	return target == protocol.ErrTransfer
}
