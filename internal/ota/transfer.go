package ota

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/radio"
	"go.uber.org/zap"
)

// Session defaults.
const (
	DefaultPresenceTimeout = 15 * time.Second
	DefaultChunkDelay      = 10 * time.Millisecond
	DefaultMaxRounds       = 3
)

// Programmer runs programming sessions through a protocol engine.
type Programmer struct {
	Engine *protocol.Engine

	// ControlParams and ProgrammingParams are the two radio channels. When
	// ProgrammingParams has no frequency the radio is left alone.
	ControlParams     radio.ChannelParams
	ProgrammingParams radio.ChannelParams

	PresenceTimeout time.Duration
	// ResultTimeout bounds each wait for a transfer-result; zero uses the
	// engine's reply timeout.
	ResultTimeout time.Duration
	ChunkDelay    time.Duration
	MaxRounds     int

	// Progress, when set, is called on every state change and chunk.
	Progress func(Event)

	Logger *zap.Logger
}

// NewProgrammer returns a Programmer with default timing.
func NewProgrammer(eng *protocol.Engine) *Programmer {
	return &Programmer{
		Engine:          eng,
		PresenceTimeout: DefaultPresenceTimeout,
		ChunkDelay:      DefaultChunkDelay,
		MaxRounds:       DefaultMaxRounds,
	}
}

// Result summarises a finished session.
type Result struct {
	Target   protocol.TargetAddress
	State    State
	Chunks   int
	Rounds   int // retransmission rounds used
	Resent   int // chunks sent again across all rounds
	RSSI     int16
	Duration time.Duration
}

type session struct {
	*Programmer
	addr   protocol.TargetAddress
	img    *Image
	result *Result
}

// Program transfers img to the unit at addr. The returned Result is never
// nil; its State is StateDone on success and StateFailed otherwise.
func (p *Programmer) Program(ctx context.Context, addr protocol.TargetAddress, img *Image) (*Result, error) {
	s := &session{
		Programmer: p,
		addr:       addr,
		img:        img,
		result:     &Result{Target: addr, State: StateAwaitPresence, Chunks: img.Chunks()},
	}
	start := time.Now()
	err := s.run(ctx)
	s.result.Duration = time.Since(start)
	if err != nil {
		s.enter(StateFailed)
		s.log().Error("Programming failed", zap.String("target", addr.String()), zap.Error(err))
		return s.result, err
	}
	s.enter(StateDone)
	s.log().Info("Programming complete",
		zap.String("target", addr.String()),
		zap.Int("chunks", s.result.Chunks),
		zap.Int("rounds", s.result.Rounds),
		zap.Duration("duration", s.result.Duration),
	)
	return s.result, nil
}

func (s *session) run(ctx context.Context) (err error) {
	if s.addr.Mode() != protocol.ModeIndividual {
		return &protocol.Error{Op: "program", Kind: protocol.ErrWrongMode, Address: s.addr}
	}
	if s.img.Chunks() > MaxChunks {
		return &protocol.Error{Op: "program", Kind: protocol.ErrImageTooLarge, Address: s.addr}
	}
	eng := s.Engine

	s.enter(StateAwaitPresence)
	if _, err := eng.WaitPresence(ctx, s.addr, s.presenceTimeout()); err != nil {
		return err
	}

	s.enter(StateRequestSent)
	s.enter(StateAwaitReady)
	if err := eng.RequestProgramming(ctx, s.addr); err != nil {
		return err
	}
	s.enter(StateGotReady)

	if s.ProgrammingParams.Frequency != 0 {
		defer func() {
			restoreErr := radio.Retune(context.WithoutCancel(ctx), eng.Radio, s.ControlParams)
			if restoreErr != nil {
				s.log().Error("Failed to restore control channel", zap.Error(restoreErr))
				if err == nil {
					err = &protocol.Error{Op: "retune", Kind: protocol.ErrRadio, Address: s.addr, Err: restoreErr}
				}
			}
		}()
		if err := radio.Retune(ctx, eng.Radio, s.ProgrammingParams); err != nil {
			return &protocol.Error{Op: "retune", Kind: protocol.ErrRadio, Address: s.addr, Err: err}
		}
	}

	s.enter(StateStartSent)
	s.enter(StateAwaitStartAck)
	ack, err := eng.StartTransfer(ctx, s.addr, uint16(s.img.PaddedSize()), s.img.Checksum())
	if err != nil {
		return err
	}
	s.result.RSSI = ack.RSSI
	if ack.Oversize {
		return &protocol.Error{Op: "start-transfer", Kind: protocol.ErrImageTooLarge, Address: s.addr,
			Err: fmt.Errorf("receiver has no room for %d bytes", s.img.PaddedSize())}
	}

	s.enter(StateTransferring)
	all := make([]int, s.img.Chunks())
	for i := range all {
		all[i] = i
	}
	if err := s.sendChunks(ctx, all, 0); err != nil {
		return err
	}

	for round := 0; ; round++ {
		s.enter(StateAwaitResult)
		res, err := eng.AwaitTransferResult(ctx, s.addr, s.ResultTimeout)
		if err != nil {
			return err
		}
		if res.OK() {
			return nil
		}
		if round >= s.MaxRounds {
			return &TransferError{Rounds: round, Last: res}
		}

		resend := s.selectChunks(res)
		s.log().Warn("Receiver reported bad chunks",
			zap.String("target", s.addr.String()),
			zap.Uint8("status", res.Status),
			zap.Uint8("error_headers", res.ErrorHeaders),
			zap.Uint8("error_packets", res.ErrorPackets),
			zap.Ints("resend", resend),
			zap.Int("round", round+1),
		)
		s.result.Rounds = round + 1
		s.result.Resent += len(resend)
		s.enter(StateRetransmitting)
		if err := s.sendChunks(ctx, resend, round+1); err != nil {
			return err
		}
	}
}

// selectChunks turns the reported indices into chunk numbers to resend.
// Indices beyond the image are ignored; an empty list means everything.
func (s *session) selectChunks(res protocol.TransferResult) []int {
	if len(res.Indices) == 0 {
		all := make([]int, s.img.Chunks())
		for i := range all {
			all[i] = i
		}
		return all
	}
	out := make([]int, 0, len(res.Indices))
	for _, idx := range res.Indices {
		if int(idx) >= s.img.Chunks() {
			s.log().Warn("Ignoring out-of-range chunk index", zap.Uint16("index", idx), zap.Int("chunks", s.img.Chunks()))
			continue
		}
		out = append(out, int(idx))
	}
	return out
}

func (s *session) sendChunks(ctx context.Context, indices []int, round int) error {
	delay := s.ChunkDelay
	for n, i := range indices {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		chunk, err := s.img.Chunk(i)
		if err != nil {
			return err
		}
		if err := s.Engine.Transmit(ctx, "chunk", s.addr, chunk.Frame()); err != nil {
			return err
		}
		s.notify(Event{State: s.result.State, Chunk: n + 1, Total: len(indices), Round: round})
	}
	return nil
}

// enter moves the session to state. A finished session stays finished.
func (s *session) enter(state State) {
	if s.result.State.Terminal() {
		return
	}
	s.result.State = state
	s.log().Debug("Programming state", zap.String("target", s.addr.String()), zap.String("state", state.String()))
	s.notify(Event{State: state})
}

func (s *session) notify(ev Event) {
	if s.Progress != nil {
		s.Progress(ev)
	}
}

func (s *session) presenceTimeout() time.Duration {
	if s.PresenceTimeout <= 0 {
		return DefaultPresenceTimeout
	}
	return s.PresenceTimeout
}

func (p *Programmer) log() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.Named("ota")
}
