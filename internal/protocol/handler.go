package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/radio"
	"go.uber.org/zap"
)

// Engine defaults.
const (
	DefaultReplyTimeout = 2 * time.Second
	DefaultPollInterval = 3 * time.Millisecond
)

var errDeadline = errors.New("deadline elapsed")

// Engine runs command/acknowledge exchanges over a transceiver. It is not
// safe for concurrent use; there is one engine per radio.
type Engine struct {
	Radio radio.Transceiver

	// ReplyTimeout bounds each wait for an acknowledgement.
	ReplyTimeout time.Duration
	// PollInterval is the sleep between receive polls.
	PollInterval time.Duration
	// TxPoll is the interval used while waiting for the transmitter.
	TxPoll time.Duration

	// SendDuration and ReceiveDuration drive enable-then-listen: while
	// SendDuration runs, enable is re-sent every ReplyTimeout; afterwards
	// the engine keeps listening for ReceiveDuration.
	SendDuration    time.Duration
	ReceiveDuration time.Duration

	Logger *zap.Logger
}

// NewEngine returns an engine with default timing.
func NewEngine(tr radio.Transceiver) *Engine {
	return &Engine{
		Radio:        tr,
		ReplyTimeout: DefaultReplyTimeout,
		PollInterval: DefaultPollInterval,
		TxPoll:       radio.DefaultTxPoll,
	}
}

func (e *Engine) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.Named("protocol")
}

func (e *Engine) replyTimeout() time.Duration {
	if e.ReplyTimeout <= 0 {
		return DefaultReplyTimeout
	}
	return e.ReplyTimeout
}

// Enable switches the addressed units on and returns the mask of units
// that acknowledged.
func (e *Engine) Enable(ctx context.Context, addr TargetAddress) (uint8, error) {
	return e.groupExchange(ctx, CmdEnable, addr, e.SendDuration, e.ReceiveDuration)
}

// Disable switches the addressed units off and returns the mask of units
// that acknowledged.
func (e *Engine) Disable(ctx context.Context, addr TargetAddress) (uint8, error) {
	return e.groupExchange(ctx, CmdDisable, addr, 0, 0)
}

// RangeCheck pings the addressed units and returns the mask of units in range.
func (e *Engine) RangeCheck(ctx context.Context, addr TargetAddress) (uint8, error) {
	return e.groupExchange(ctx, CmdRangeCheck, addr, 0, 0)
}

// StartStreaming asks the addressed units to start sending telemetry pages.
// A group address starts group streaming; an individual address requests
// the raw page stream of one unit. No acknowledgement is expected.
func (e *Engine) StartStreaming(ctx context.Context, addr TargetAddress) error {
	frame, err := CmdStartStreaming.Build(addr)
	if err != nil {
		return err
	}
	if err := e.drain(CmdStartStreaming.Name, addr); err != nil {
		return err
	}
	return e.Transmit(ctx, CmdStartStreaming.Name, addr, frame)
}

// WaitPresence waits for any frame from the unit: a frame whose first
// payload byte is the unit id. It fails with ErrNoReply after timeout.
func (e *Engine) WaitPresence(ctx context.Context, addr TargetAddress, timeout time.Duration) (radio.Frame, error) {
	const op = "presence"
	if addr.Mode() != ModeIndividual {
		return radio.Frame{}, newError(op, ErrWrongMode, addr, nil)
	}
	var seen radio.Frame
	err := e.wait(ctx, op, addr, timeout, func(f radio.Frame) bool {
		if len(f.Payload) > 0 && f.Payload[0] == addr.ID() {
			seen = f
			return true
		}
		return false
	})
	if errors.Is(err, errDeadline) {
		return radio.Frame{}, newError(op, ErrNoReply, addr, fmt.Errorf("unit silent for %v", timeout))
	}
	if err != nil {
		return radio.Frame{}, err
	}
	e.log().Info("Unit present", zap.Uint8("unit", addr.ID()), zap.Float32("rssi", seen.RSSI))
	return seen, nil
}

// RequestProgramming asks the unit to enter programming mode and waits
// for its ready-ack.
func (e *Engine) RequestProgramming(ctx context.Context, addr TargetAddress) error {
	frame, err := CmdRequestProgramming.Build(addr)
	if err != nil {
		return err
	}
	_, err = e.individualExchange(ctx, CmdRequestProgramming, addr, frame, e.replyTimeout())
	return err
}

// StartTransfer announces an image of size bytes with checksum crc and
// returns the receiver's start-ack. The caller decides what to do with
// the oversize flag.
func (e *Engine) StartTransfer(ctx context.Context, addr TargetAddress, size uint16, crc uint32) (StartAck, error) {
	frame, err := BuildStartTransfer(addr, size, crc)
	if err != nil {
		return StartAck{}, err
	}
	reply, err := e.individualExchange(ctx, CmdStartTransfer, addr, frame, e.replyTimeout())
	if err != nil {
		return StartAck{}, err
	}
	ack, err := ParseStartAck(reply.Payload)
	if err != nil {
		return StartAck{}, err
	}
	e.log().Info("Start acknowledged",
		zap.Uint8("unit", ack.ID),
		zap.Int16("rssi", ack.RSSI),
		zap.Bool("oversize", ack.Oversize),
	)
	return ack, nil
}

// AwaitTransferResult waits for the receiver's transfer-result.
func (e *Engine) AwaitTransferResult(ctx context.Context, addr TargetAddress, timeout time.Duration) (TransferResult, error) {
	const op = "transfer-result"
	if addr.Mode() != ModeIndividual {
		return TransferResult{}, newError(op, ErrWrongMode, addr, nil)
	}
	if timeout <= 0 {
		timeout = e.replyTimeout()
	}
	var reply radio.Frame
	err := e.wait(ctx, op, addr, timeout, matchReply(OpTransferResult, addr, &reply))
	if errors.Is(err, errDeadline) {
		return TransferResult{}, newError(op, ErrNoReply, addr, fmt.Errorf("no %s within %v", OpTransferResult, timeout))
	}
	if err != nil {
		return TransferResult{}, err
	}
	return ParseTransferResult(reply.Payload)
}

// Transmit sends payload and blocks until the transmitter is free again.
func (e *Engine) Transmit(ctx context.Context, op string, addr TargetAddress, payload []byte) error {
	logging.LogFrame("tx", payload, zap.String("op", op))
	if err := e.Radio.Send(radio.Frame{Payload: payload}); err != nil {
		return newError(op, ErrRadio, addr, err)
	}
	if err := radio.WaitTxFree(ctx, e.Radio, e.TxPoll); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newError(op, ErrRadio, addr, err)
	}
	return nil
}

// Listen hands every frame that passed the radio CRC to visit until ctx is
// cancelled or visit returns an error. Cancellation is not an error.
func (e *Engine) Listen(ctx context.Context, visit func(radio.Frame) error) error {
	var visitErr error
	err := e.wait(ctx, "listen", TargetAddress{}, 0, func(f radio.Frame) bool {
		visitErr = visit(f)
		return visitErr != nil
	})
	if visitErr != nil {
		return visitErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (e *Engine) groupExchange(ctx context.Context, cmd Command, addr TargetAddress, sendFor, listenFor time.Duration) (uint8, error) {
	frame, err := cmd.Build(addr)
	if err != nil {
		return 0, err
	}
	if err := e.drain(cmd.Name, addr); err != nil {
		return 0, err
	}

	want := addr.Mask()
	var accepted uint8
	collect := func(f radio.Frame) bool {
		op, b, ok := ParseReply(f.Payload)
		if !ok || op != cmd.Reply || !addr.Matches(b) {
			return false
		}
		if b&want&^accepted != 0 {
			e.log().Debug("Acknowledged",
				zap.String("command", cmd.Name),
				zap.String("mask", fmt.Sprintf("0b%08b", b&want)),
				zap.Float32("rssi", f.RSSI),
			)
		}
		accepted |= b & want
		return accepted == want
	}
	listen := func(d time.Duration) error {
		err := e.wait(ctx, cmd.Name, addr, d, collect)
		if errors.Is(err, errDeadline) {
			return nil
		}
		return err
	}

	if sendFor > 0 {
		sendUntil := time.Now().Add(sendFor)
		for accepted != want {
			remaining := time.Until(sendUntil)
			if remaining <= 0 {
				break
			}
			if err := e.Transmit(ctx, cmd.Name, addr, frame); err != nil {
				return accepted, err
			}
			if err := listen(min(e.replyTimeout(), remaining)); err != nil {
				return accepted, err
			}
		}
		if accepted != want && listenFor > 0 {
			if err := listen(listenFor); err != nil {
				return accepted, err
			}
		}
	} else {
		if err := e.Transmit(ctx, cmd.Name, addr, frame); err != nil {
			return 0, err
		}
		if listenFor <= 0 {
			listenFor = e.replyTimeout()
		}
		if err := listen(listenFor); err != nil {
			return accepted, err
		}
	}

	e.log().Info("Group exchange complete",
		zap.String("command", cmd.Name),
		zap.String("requested", fmt.Sprintf("0b%08b", want)),
		zap.String("accepted", fmt.Sprintf("0b%08b", accepted)),
	)
	return accepted, nil
}

func (e *Engine) individualExchange(ctx context.Context, cmd Command, addr TargetAddress, frame []byte, timeout time.Duration) (radio.Frame, error) {
	if err := e.drain(cmd.Name, addr); err != nil {
		return radio.Frame{}, err
	}
	if err := e.Transmit(ctx, cmd.Name, addr, frame); err != nil {
		return radio.Frame{}, err
	}
	var reply radio.Frame
	err := e.wait(ctx, cmd.Name, addr, timeout, matchReply(cmd.Reply, addr, &reply))
	if errors.Is(err, errDeadline) {
		return radio.Frame{}, newError(cmd.Name, ErrNoReply, addr, fmt.Errorf("no %s within %v", cmd.Reply, timeout))
	}
	if err != nil {
		return radio.Frame{}, err
	}
	return reply, nil
}

func matchReply(want Opcode, addr TargetAddress, out *radio.Frame) func(radio.Frame) bool {
	return func(f radio.Frame) bool {
		op, b, ok := ParseReply(f.Payload)
		if ok && op == want && addr.Matches(b) {
			*out = f
			return true
		}
		return false
	}
}

// drain discards frames queued before a request so that only replies to
// that request are considered.
func (e *Engine) drain(op string, addr TargetAddress) error {
	frames, err := e.Radio.Receive()
	if err != nil {
		return newError(op, ErrRadio, addr, err)
	}
	if len(frames) > 0 {
		e.log().Debug("Discarded stale frames", zap.String("op", op), zap.Int("count", len(frames)))
	}
	return nil
}

// wait polls the transceiver until visit returns true, the timeout elapses
// (errDeadline) or ctx is done. A zero timeout waits for ctx only. Frames
// that failed the radio CRC never reach visit.
func (e *Engine) wait(ctx context.Context, op string, addr TargetAddress, timeout time.Duration, visit func(radio.Frame) bool) error {
	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frames, err := e.Radio.Receive()
		if err != nil {
			return newError(op, ErrRadio, addr, err)
		}
		for _, f := range frames {
			if !f.OK() {
				e.log().Debug("Discarded frame", zap.String("status", f.Status.String()), zap.Int("length", f.Len()))
				continue
			}
			logging.LogFrame("rx", f.Payload, zap.Uint8("channel", f.Channel), zap.Float32("rssi", f.RSSI))
			if visit(f) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return errDeadline
		case <-ticker.C:
		}
	}
}
