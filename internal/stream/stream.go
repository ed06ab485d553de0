package stream

import (
	"context"
	"time"

	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/radio"
	"github.com/muurk/lorahub/internal/telemetry"
	"go.uber.org/zap"
)

// Streamer starts telemetry streams and pumps pages into sinks.
type Streamer struct {
	Engine          *protocol.Engine
	PresenceTimeout time.Duration
	Logger          *zap.Logger
}

// Stats counts what a stream loop saw.
type Stats struct {
	Pages   int
	Dropped int
	PerUnit map[uint8]int
}

// NewStreamer returns a Streamer with the default presence timeout.
func NewStreamer(eng *protocol.Engine) *Streamer {
	return &Streamer{Engine: eng, PresenceTimeout: 15 * time.Second}
}

// Group starts group streaming for addr and writes pages until ctx is
// cancelled. The unit of a page is its receive channel plus one; pages
// from units outside addr are dropped.
func (s *Streamer) Group(ctx context.Context, addr protocol.TargetAddress, sink Sink) (Stats, error) {
	if addr.Mode() != protocol.ModeGroup {
		return Stats{}, &protocol.Error{Op: "stream", Kind: protocol.ErrWrongMode, Address: addr}
	}
	if err := s.Engine.StartStreaming(ctx, addr); err != nil {
		return Stats{}, err
	}
	s.log().Info("Group streaming started", zap.String("target", addr.String()))
	return s.pump(ctx, addr, sink, func(f radio.Frame) uint8 { return f.Channel + 1 })
}

// Raw waits for the unit to show up, requests its raw page stream and
// writes pages until ctx is cancelled.
func (s *Streamer) Raw(ctx context.Context, addr protocol.TargetAddress, sink Sink) (Stats, error) {
	if addr.Mode() != protocol.ModeIndividual {
		return Stats{}, &protocol.Error{Op: "raw", Kind: protocol.ErrWrongMode, Address: addr}
	}
	if _, err := s.Engine.WaitPresence(ctx, addr, s.PresenceTimeout); err != nil {
		return Stats{}, err
	}
	if err := s.Engine.StartStreaming(ctx, addr); err != nil {
		return Stats{}, err
	}
	s.log().Info("Raw stream started", zap.String("target", addr.String()))
	return s.pump(ctx, addr, sink, func(radio.Frame) uint8 { return addr.ID() })
}

func (s *Streamer) pump(ctx context.Context, addr protocol.TargetAddress, sink Sink, unitOf func(radio.Frame) uint8) (Stats, error) {
	stats := Stats{PerUnit: make(map[uint8]int)}
	err := s.Engine.Listen(ctx, func(f radio.Frame) error {
		if f.Len() != telemetry.PageSize {
			stats.Dropped++
			return nil
		}
		unit := unitOf(f)
		if !addr.Contains(unit) {
			stats.Dropped++
			s.log().Debug("Page from unaddressed unit", zap.Uint8("unit", unit))
			return nil
		}
		page, err := telemetry.DecodePage(f.Payload)
		if err != nil {
			stats.Dropped++
			return nil
		}
		if err := sink.WritePage(unit, page); err != nil {
			return err
		}
		stats.Pages++
		stats.PerUnit[unit]++
		return nil
	})
	s.log().Info("Stream stopped",
		zap.String("target", addr.String()),
		zap.Int("pages", stats.Pages),
		zap.Int("dropped", stats.Dropped),
	)
	return stats, err
}

func (s *Streamer) log() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.Named("stream")
}
