package stream

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/radio"
	"github.com/muurk/lorahub/internal/telemetry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	mu     sync.Mutex
	pages  map[uint8][]*telemetry.Page
	after  int
	cancel context.CancelFunc
	err    error
	closed bool
}

func (m *memorySink) WritePage(unit uint8, p *telemetry.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.pages == nil {
		m.pages = make(map[uint8][]*telemetry.Page)
	}
	m.pages[unit] = append(m.pages[unit], p)
	m.after--
	if m.after == 0 && m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func testPage(t *testing.T, seed int16) []byte {
	t.Helper()
	var p telemetry.Page
	for i := 0; i < telemetry.SamplesPerPage; i++ {
		p.X[i] = seed + int16(i)
		p.Y[i] = -seed - int16(i)
		p.Z[i] = seed * 2
	}
	raw, err := p.Encode()
	require.NoError(t, err)
	return raw
}

func newTestStreamer(t *testing.T) (*Streamer, *radio.Loopback) {
	t.Helper()
	lb := radio.NewLoopback(nil)
	require.NoError(t, lb.Start())
	eng := protocol.NewEngine(lb)
	eng.PollInterval = time.Millisecond
	eng.TxPoll = time.Millisecond
	eng.Logger = zap.NewNop()
	s := NewStreamer(eng)
	s.PresenceTimeout = 50 * time.Millisecond
	s.Logger = zap.NewNop()
	return s, lb
}

func TestGroupRoutesByChannel(t *testing.T) {
	s, lb := newTestStreamer(t)
	addr, _ := protocol.GroupOf(1, 3)

	lb.SetResponder(func(sent radio.Frame) []radio.Frame {
		return []radio.Frame{
			{Payload: testPage(t, 10), Channel: 0},
			{Payload: testPage(t, 20), Channel: 2},
			{Payload: testPage(t, 30), Channel: 1}, // unit 2 not addressed
			{Payload: []byte{0x02, 0x01}},          // not a page
			{Payload: testPage(t, 40), Channel: 0, Status: radio.StatusBadChecksum},
			{Payload: testPage(t, 50), Channel: 2},
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sink := &memorySink{after: 3, cancel: cancel}

	stats, err := s.Group(ctx, addr, sink)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Pages)
	require.Equal(t, 2, stats.Dropped)
	require.Equal(t, map[uint8]int{1: 1, 3: 2}, stats.PerUnit)

	require.Equal(t, int16(10), sink.pages[1][0].X[0])
	require.Equal(t, int16(50), sink.pages[3][1].X[0])
	require.Equal(t, []byte{0x03, 0x05, 0x00}, lb.Sent()[0].Payload)
}

func TestRawWaitsForPresence(t *testing.T) {
	s, lb := newTestStreamer(t)
	addr, _ := protocol.Individual(42)

	lb.Inject(radio.Frame{Payload: []byte{42, 0x01}})
	lb.SetResponder(func(sent radio.Frame) []radio.Frame {
		if sent.Payload[0] != byte(protocol.OpStartStreaming) || sent.Payload[1] != 42 {
			return nil
		}
		return []radio.Frame{
			{Payload: testPage(t, 1), Channel: 5},
			{Payload: testPage(t, 2), Channel: 6},
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sink := &memorySink{after: 2, cancel: cancel}

	stats, err := s.Raw(ctx, addr, sink)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Pages)
	require.Len(t, sink.pages[42], 2)
}

func TestRawUnitAbsent(t *testing.T) {
	s, lb := newTestStreamer(t)
	addr, _ := protocol.Individual(42)

	_, err := s.Raw(context.Background(), addr, &memorySink{})
	require.ErrorIs(t, err, protocol.ErrNoReply)
	require.Empty(t, lb.Sent())
}

func TestStreamStopsOnSinkError(t *testing.T) {
	s, lb := newTestStreamer(t)
	addr, _ := protocol.GroupOf(1)
	lb.SetResponder(func(radio.Frame) []radio.Frame {
		return []radio.Frame{{Payload: testPage(t, 0)}}
	})
	diskFull := errors.New("disk full")

	_, err := s.Group(context.Background(), addr, &memorySink{err: diskFull})
	require.ErrorIs(t, err, diskFull)
}

func TestStreamModes(t *testing.T) {
	s, _ := newTestStreamer(t)
	group, _ := protocol.GroupOf(1)
	single, _ := protocol.Individual(1)

	_, err := s.Group(context.Background(), single, &memorySink{})
	require.ErrorIs(t, err, protocol.ErrWrongMode)
	_, err = s.Raw(context.Background(), group, &memorySink{})
	require.ErrorIs(t, err, protocol.ErrWrongMode)
}

func TestCSVSinkPerUnit(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	sink := NewUnitCSVSink(dir, start)

	page, err := telemetry.DecodePage(testPage(t, 7))
	require.NoError(t, err)
	require.NoError(t, sink.WritePage(1, page))
	require.NoError(t, sink.WritePage(3, page))
	require.NoError(t, sink.WritePage(1, page))

	files := sink.Files()
	require.Equal(t, []string{
		filepath.Join(dir, telemetry.UnitLogName(1, start)),
		filepath.Join(dir, telemetry.UnitLogName(3, start)),
	}, files)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, telemetry.Header, lines[0])
	require.Len(t, lines, 1+2*telemetry.SamplesPerPage)
	require.Equal(t, "7,-7,14", lines[1])
}

func TestCSVSinkRaw(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	sink := NewRawCSVSink(dir, start)

	page, err := telemetry.DecodePage(testPage(t, 7))
	require.NoError(t, err)
	require.NoError(t, sink.WritePage(1, page))
	require.NoError(t, sink.WritePage(2, page))
	require.Equal(t, []string{filepath.Join(dir, telemetry.RawLogName(start))}, sink.Files())
	require.NoError(t, sink.Close())
}

func TestCSVSinkFilesSurviveClose(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	sink := NewUnitCSVSink(dir, start)
	require.Empty(t, sink.Files())

	page, err := telemetry.DecodePage(testPage(t, 3))
	require.NoError(t, err)
	require.NoError(t, sink.WritePage(2, page))
	require.NoError(t, sink.WritePage(1, page))
	before := sink.Files()
	require.Len(t, before, 2)

	require.NoError(t, sink.Close())
	require.Equal(t, before, sink.Files())
	for _, f := range sink.Files() {
		require.FileExists(t, f)
	}
}

func TestMultiSink(t *testing.T) {
	a, b := &memorySink{}, &memorySink{err: errors.New("b failed")}
	m := MultiSink{a, b}

	page, err := telemetry.DecodePage(testPage(t, 1))
	require.NoError(t, err)
	require.Error(t, m.WritePage(1, page))
	require.Len(t, a.pages[1], 1)

	require.NoError(t, m.Close())
	require.True(t, a.closed)
	require.True(t, b.closed)
}
