package radio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakyStart struct {
	*Loopback
	failures int
	calls    int
}

func (f *flakyStart) Start() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("lgw_start failed")
	}
	return f.Loopback.Start()
}

func TestStartWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{name: "first attempt", failures: 0, attempts: 10, wantCalls: 1},
		{name: "third attempt", failures: 2, attempts: 10, wantCalls: 3},
		{name: "exhausted", failures: 5, attempts: 3, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &flakyStart{Loopback: NewLoopback(nil), failures: tt.failures}
			err := StartWithRetry(context.Background(), tr, tt.attempts, time.Millisecond)
			if tt.wantErr {
				require.Error(t, err)
				require.False(t, tr.Started())
			} else {
				require.NoError(t, err)
				require.True(t, tr.Started())
			}
			require.Equal(t, tt.wantCalls, tr.calls)
		})
	}
}

func TestStartWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &flakyStart{Loopback: NewLoopback(nil), failures: 100}
	err := StartWithRetry(ctx, tr, 10, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, tr.calls)
}

func TestRetune(t *testing.T) {
	lb := NewLoopback(nil)
	require.NoError(t, lb.Start())

	prog := ChannelParams{Frequency: 869400000, Bandwidth: 250, SpreadingFactor: 7, CodingRate: 1}
	require.NoError(t, Retune(context.Background(), lb, prog))
	require.True(t, lb.Started())
	require.Equal(t, []ChannelParams{prog}, lb.Configured())
}

func TestWaitTxFree(t *testing.T) {
	lb := NewLoopback(nil)
	lb.BusyPolls = 3
	require.NoError(t, lb.Start())
	require.NoError(t, lb.Send(Frame{Payload: []byte{0x01, 0x05, 0x00}}))

	require.NoError(t, WaitTxFree(context.Background(), lb, time.Millisecond))
	status, err := lb.TxStatus()
	require.NoError(t, err)
	require.Equal(t, TxFree, status)
}

func TestWaitTxFreeCancelled(t *testing.T) {
	lb := NewLoopback(nil)
	lb.BusyPolls = 1 << 30
	require.NoError(t, lb.Start())
	require.NoError(t, lb.Send(Frame{Payload: []byte{0x01}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, WaitTxFree(ctx, lb, time.Millisecond), context.DeadlineExceeded)
}

func TestLoopbackResponder(t *testing.T) {
	lb := NewLoopback(func(sent Frame) []Frame {
		return []Frame{{Payload: []byte{sent.Payload[0] + 1, sent.Payload[1]}}}
	})

	require.ErrorIs(t, lb.Send(Frame{Payload: []byte{0x01, 0x05}}), ErrNotStarted)
	require.NoError(t, lb.Start())
	require.NoError(t, lb.Send(Frame{Payload: []byte{0x01, 0x05}}))

	frames, err := lb.Receive()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []byte{0x02, 0x05}, frames[0].Payload)
	require.Equal(t, StatusOK, frames[0].Status)

	frames, err = lb.Receive()
	require.NoError(t, err)
	require.Empty(t, frames)

	require.Len(t, lb.Sent(), 1)
	lb.ResetSent()
	require.Empty(t, lb.Sent())
}

func TestLoopbackSentIsCopied(t *testing.T) {
	lb := NewLoopback(nil)
	require.NoError(t, lb.Start())
	buf := []byte{0x03, 0x01, 0x00}
	require.NoError(t, lb.Send(Frame{Payload: buf}))
	buf[1] = 0xFF
	require.Equal(t, byte(0x01), lb.Sent()[0].Payload[1])
}

func TestFrameValidate(t *testing.T) {
	require.NoError(t, Frame{Payload: make([]byte, MaxPayloadSize)}.Validate())
	require.ErrorIs(t, Frame{Payload: make([]byte, MaxPayloadSize+1)}.Validate(), ErrPayloadTooLarge)
}

func TestChannelParamsValidate(t *testing.T) {
	base := ChannelParams{Frequency: 869120000, Modulation: ModulationLoRa, Bandwidth: 125, SpreadingFactor: 8, CodingRate: 1}

	tests := []struct {
		name    string
		mutate  func(*ChannelParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ChannelParams) {}},
		{name: "no frequency", mutate: func(p *ChannelParams) { p.Frequency = 0 }, wantErr: true},
		{name: "bad bandwidth", mutate: func(p *ChannelParams) { p.Bandwidth = 200 }, wantErr: true},
		{name: "sf too low", mutate: func(p *ChannelParams) { p.SpreadingFactor = 6 }, wantErr: true},
		{name: "sf too high", mutate: func(p *ChannelParams) { p.SpreadingFactor = 13 }, wantErr: true},
		{name: "bad coding rate", mutate: func(p *ChannelParams) { p.CodingRate = 5 }, wantErr: true},
		{name: "fsk", mutate: func(p *ChannelParams) { p.Modulation = ModulationFSK; p.BitrateKbps = 50 }},
		{name: "fsk bad bitrate", mutate: func(p *ChannelParams) { p.Modulation = ModulationFSK }, wantErr: true},
		{name: "unknown modulation", mutate: func(p *ChannelParams) { p.Modulation = "OOK" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParams)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestChannelParamsString(t *testing.T) {
	p := ChannelParams{Frequency: 869400000, Bandwidth: 250, SpreadingFactor: 7, CodingRate: 1}
	require.Equal(t, "LoRa 869400000 Hz BW250 SF7 CR4/5", p.String())
}
