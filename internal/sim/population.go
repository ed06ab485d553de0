package sim

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"github.com/muurk/lorahub/internal/checksum"
	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/ota"
	"github.com/muurk/lorahub/internal/protocol"
	"github.com/muurk/lorahub/internal/radio"
	"go.uber.org/zap"
)

// Transfer-result status codes reported by the simulated bootloader.
const (
	StatusVerified    = 0
	StatusBadChunks   = 1
	StatusBadChecksum = 2
)

// Population defaults.
const (
	DefaultPageInterval   = 100 * time.Millisecond
	DefaultBeaconInterval = time.Second
)

// Population is a set of simulated units behind an in-memory concentrator.
// Exported fields must be set before the population is used.
type Population struct {
	*radio.Loopback

	// PageInterval is the period between pages from each streaming unit.
	PageInterval time.Duration
	// BeaconInterval is the period between presence beacons from idle
	// units. Zero disables beacons.
	BeaconInterval time.Duration
	// ProgrammingFrequency, when set, is the only frequency a unit in
	// programming mode hears, and units outside programming ignore it.
	ProgrammingFrequency uint32
	// Corrupt reports whether chunk index is lost in round (0 for the
	// first pass).
	Corrupt func(index uint8, round int) bool

	Logger *zap.Logger

	mu    sync.Mutex
	units map[uint8]*unit
	freq  uint32
	prog  *session
}

// session is the bootloader state of the unit being programmed.
type session struct {
	unit      *unit
	receiving bool
	size      int
	crc       uint32
	round     int
	expect    int
	got       int
	bad       int
	chunks    map[uint8]ota.Chunk
}

// New creates a population of the given units.
func New(units ...UnitConfig) *Population {
	p := &Population{
		PageInterval:   DefaultPageInterval,
		BeaconInterval: DefaultBeaconInterval,
		units:          make(map[uint8]*unit, len(units)),
	}
	for _, cfg := range units {
		p.units[cfg.ID] = newUnit(cfg)
	}
	p.Loopback = radio.NewLoopback(p.respond)
	return p
}

// Configure records the frequency the hub tunes to and passes the
// parameters on to the loopback.
func (p *Population) Configure(params radio.ChannelParams) error {
	p.mu.Lock()
	p.freq = params.Frequency
	p.mu.Unlock()
	return p.Loopback.Configure(params)
}

// State returns a snapshot of unit id.
func (p *Population) State(id uint8) (UnitState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.units[id]
	if !ok {
		return UnitState{}, false
	}
	return u.state(), true
}

// States returns a snapshot of every unit, ordered by id.
func (p *Population) States() []UnitState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]UnitState, 0, len(p.units))
	for _, u := range p.units {
		out = append(out, u.state())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Run emits pages and beacons until ctx is done.
func (p *Population) Run(ctx context.Context) error {
	pageInterval := p.PageInterval
	if pageInterval <= 0 {
		pageInterval = DefaultPageInterval
	}
	pages := time.NewTicker(pageInterval)
	defer pages.Stop()

	var beacons <-chan time.Time
	if p.BeaconInterval > 0 {
		t := time.NewTicker(p.BeaconInterval)
		defer t.Stop()
		beacons = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pages.C:
			p.emitPages()
		case <-beacons:
			p.emitBeacons()
		}
	}
}

func (p *Population) emitPages() {
	p.mu.Lock()
	var frames []radio.Frame
	for _, u := range p.sorted() {
		if !u.streaming || u.Absent {
			continue
		}
		payload, err := u.nextPage().Encode()
		if err != nil {
			p.log().Error("Failed to encode page", zap.Uint8("unit", u.ID), zap.Error(err))
			continue
		}
		frames = append(frames, p.frame(u, payload))
	}
	p.mu.Unlock()
	p.Inject(frames...)
}

// emitBeacons sends one short frame from every idle unit on the control
// channel so that the hub can see who is in reach.
func (p *Population) emitBeacons() {
	p.mu.Lock()
	var frames []radio.Frame
	if !p.onProgrammingChannel() {
		for _, u := range p.sorted() {
			if u.Absent || u.streaming || (p.prog != nil && p.prog.unit == u) {
				continue
			}
			frames = append(frames, p.frame(u, []byte{u.ID, 0x00}))
		}
	}
	p.mu.Unlock()
	p.Inject(frames...)
}

func (p *Population) respond(sent radio.Frame) []radio.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	payload := sent.Payload
	if p.prog != nil && p.prog.receiving && len(payload) == protocol.ChunkFrameSize {
		if !p.hearsProgramming() {
			return nil
		}
		return p.receiveChunk(payload)
	}

	op, b, ok := protocol.ParseReply(payload)
	if !ok {
		return nil
	}
	switch op {
	case protocol.OpEnable:
		return p.groupAck(b, protocol.OpEnableAck, func(u *unit) { u.enabled = true })
	case protocol.OpDisable:
		return p.groupAck(b, protocol.OpDisableAck, func(u *unit) {
			u.enabled = false
			u.streaming = false
		})
	case protocol.OpRangeCheck:
		return p.groupAck(b, protocol.OpRangeAck, nil)
	case protocol.OpStartStreaming:
		p.startStreaming(b)
	case protocol.OpRequestProgramming:
		return p.requestProgramming(b)
	case protocol.OpStartTransfer:
		return p.startTransfer(payload)
	}
	return nil
}

// groupAck answers a group command with one frame per addressed unit,
// each carrying only that unit's bit.
func (p *Population) groupAck(mask byte, reply protocol.Opcode, apply func(*unit)) []radio.Frame {
	if p.onProgrammingChannel() {
		return nil
	}
	var frames []radio.Frame
	for _, u := range p.sorted() {
		bit := u.groupBit()
		if u.Absent || bit == 0 || mask&bit == 0 {
			continue
		}
		if apply != nil {
			apply(u)
		}
		frames = append(frames, p.frame(u, []byte{byte(reply), bit}))
	}
	return frames
}

// startStreaming starts enabled units named by the group mask, and the
// unit whose id equals the address byte.
func (p *Population) startStreaming(b byte) {
	if p.onProgrammingChannel() {
		return
	}
	for _, u := range p.sorted() {
		if u.Absent {
			continue
		}
		if (u.enabled && b&u.groupBit() != 0) || u.ID == b {
			u.streaming = true
			p.log().Debug("Unit streaming", zap.Uint8("unit", u.ID))
		}
	}
}

func (p *Population) requestProgramming(id byte) []radio.Frame {
	if p.onProgrammingChannel() {
		return nil
	}
	u, ok := p.units[id]
	if !ok || u.Absent {
		return nil
	}
	u.streaming = false
	p.prog = &session{unit: u}
	p.log().Debug("Unit entering programming mode", zap.Uint8("unit", id))
	return []radio.Frame{p.frame(u, []byte{byte(protocol.OpReadyAck), id})}
}

func (p *Population) startTransfer(payload []byte) []radio.Frame {
	s := p.prog
	if s == nil || payload[1] != s.unit.ID || !p.hearsProgramming() {
		return nil
	}
	if len(payload) < protocol.StartTransferSize {
		return nil
	}
	size := int(binary.LittleEndian.Uint16(payload[2:4]))
	crc := binary.LittleEndian.Uint32(payload[4:8])

	ack := protocol.StartAck{ID: s.unit.ID, RSSI: int16(s.unit.RSSI)}
	if size > s.unit.FlashSize || size%ota.ChunkSize != 0 || size == 0 {
		ack.Oversize = true
		s.receiving = false
	} else {
		s.receiving = true
		s.size = size
		s.crc = crc
		s.round = 0
		s.expect = size / ota.ChunkSize
		s.got = 0
		s.bad = 0
		s.chunks = make(map[uint8]ota.Chunk, s.expect)
	}
	p.log().Debug("Transfer announced",
		zap.Uint8("unit", s.unit.ID),
		zap.Int("size", size),
		zap.Bool("oversize", ack.Oversize),
	)
	return []radio.Frame{p.frame(s.unit, protocol.BuildStartAck(ack))}
}

func (p *Population) receiveChunk(frame []byte) []radio.Frame {
	s := p.prog
	s.got++
	chunk, err := ota.ParseChunk(frame)
	switch {
	case err != nil:
		s.bad++
		logging.LogRawBytes("Rejected chunk", frame)
	case p.Corrupt != nil && p.Corrupt(chunk.Index, s.round):
		s.bad++
	case int(chunk.Index) >= s.size/ota.ChunkSize:
		s.bad++
	default:
		s.chunks[chunk.Index] = chunk
	}
	if s.got < s.expect {
		return nil
	}
	return []radio.Frame{p.frame(s.unit, protocol.BuildTransferResult(p.finishRound()))}
}

// finishRound decides the transfer-result once the expected number of
// chunks for the round has arrived.
func (p *Population) finishRound() protocol.TransferResult {
	s := p.prog
	total := s.size / ota.ChunkSize
	res := protocol.TransferResult{ID: s.unit.ID}

	for i := 0; i < total; i++ {
		if _, ok := s.chunks[uint8(i)]; !ok {
			res.Indices = append(res.Indices, uint16(i))
		}
	}

	if len(res.Indices) == 0 {
		chunks := make([]ota.Chunk, 0, total)
		for i := 0; i < total; i++ {
			chunks = append(chunks, s.chunks[uint8(i)])
		}
		image := ota.Assemble(chunks, s.size)
		if checksum.Sum(image) == s.crc {
			s.unit.firmware = image
			s.unit.programs++
			p.prog = nil
			p.log().Info("Unit programmed", zap.Uint8("unit", s.unit.ID), zap.Int("size", s.size))
			return res
		}
		// Every chunk checked out but the image did not: start over.
		res.Status = StatusBadChecksum
		s.chunks = make(map[uint8]ota.Chunk, total)
		s.expect = total
	} else {
		res.Status = StatusBadChunks
		res.ErrorPackets = uint8(min(len(res.Indices), 255))
		s.expect = len(res.Indices)
	}
	s.round++
	s.got = 0
	s.bad = 0
	p.log().Debug("Transfer round incomplete",
		zap.Uint8("unit", s.unit.ID),
		zap.Uint8("status", res.Status),
		zap.Int("missing", len(res.Indices)),
	)
	return res
}

// onProgrammingChannel reports whether the hub is tuned to a separate
// programming channel, where control traffic goes unheard.
func (p *Population) onProgrammingChannel() bool {
	return p.ProgrammingFrequency != 0 && p.freq == p.ProgrammingFrequency
}

// hearsProgramming reports whether a unit in programming mode hears the hub.
func (p *Population) hearsProgramming() bool {
	return p.ProgrammingFrequency == 0 || p.freq == p.ProgrammingFrequency
}

func (p *Population) frame(u *unit, payload []byte) radio.Frame {
	return radio.Frame{
		Payload:   payload,
		Status:    radio.StatusOK,
		RSSI:      u.RSSI,
		Channel:   u.channel(),
		Frequency: p.freq,
	}
}

func (p *Population) sorted() []*unit {
	out := make([]*unit, 0, len(p.units))
	for _, u := range p.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Population) log() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.Named("sim")
}

// DropIndices loses the listed chunks on the first pass only.
func DropIndices(indices ...uint8) func(uint8, int) bool {
	drop := make(map[uint8]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	return func(index uint8, round int) bool {
		return round == 0 && drop[index]
	}
}

// DropEvery loses every nth chunk on the first pass only.
func DropEvery(n int) func(uint8, int) bool {
	if n <= 0 {
		return nil
	}
	return func(index uint8, round int) bool {
		return round == 0 && int(index)%n == n-1
	}
}
