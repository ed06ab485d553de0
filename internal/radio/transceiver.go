package radio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TxStatus reports whether the transmitter is still busy with the last Send.
type TxStatus int

const (
	TxFree TxStatus = iota
	TxBusy
)

func (s TxStatus) String() string {
	if s == TxBusy {
		return "BUSY"
	}
	return "FREE"
}

// Transceiver is the concentrator as seen by the protocol engines.
// Send and Receive never block; callers poll.
type Transceiver interface {
	Configure(ChannelParams) error
	Start() error
	Stop() error
	Send(Frame) error
	TxStatus() (TxStatus, error)
	Receive() ([]Frame, error)
}

// Defaults used by StartWithRetry and WaitTxFree.
const (
	DefaultStartAttempts = 10
	DefaultStartDelay    = 300 * time.Millisecond
	DefaultTxPoll        = 2 * time.Millisecond
)

// ErrNotStarted is returned by transceivers asked to send or receive while stopped.
var ErrNotStarted = errors.New("transceiver not started")

// StartWithRetry calls Start until it succeeds, up to attempts times with
// delay between attempts. The concentrator occasionally rejects a start
// issued too soon after configuration.
func StartWithRetry(ctx context.Context, t Transceiver, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = t.Start(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed to start concentrator after %d attempts: %w", attempts, err)
}

// Retune stops the transceiver, applies params and starts it again.
func Retune(ctx context.Context, t Transceiver, params ChannelParams) error {
	if err := t.Stop(); err != nil {
		return fmt.Errorf("failed to stop concentrator: %w", err)
	}
	if err := t.Configure(params); err != nil {
		return fmt.Errorf("failed to configure concentrator: %w", err)
	}
	return StartWithRetry(ctx, t, DefaultStartAttempts, DefaultStartDelay)
}

// WaitTxFree polls TxStatus every interval until the transmitter is free.
func WaitTxFree(ctx context.Context, t Transceiver, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTxPoll
	}
	for {
		status, err := t.TxStatus()
		if err != nil {
			return fmt.Errorf("failed to read TX status: %w", err)
		}
		if status == TxFree {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
