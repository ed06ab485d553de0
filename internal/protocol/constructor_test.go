package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandBuild(t *testing.T) {
	group, _ := Group(0b00000101)
	single, _ := Individual(17)

	tests := []struct {
		name    string
		cmd     Command
		addr    TargetAddress
		want    []byte
		wantErr bool
	}{
		{name: "enable", cmd: CmdEnable, addr: group, want: []byte{0x01, 0x05, 0x00}},
		{name: "disable", cmd: CmdDisable, addr: group, want: []byte{0x04, 0x05, 0x00}},
		{name: "range check", cmd: CmdRangeCheck, addr: group, want: []byte{0x06, 0x05, 0x00}},
		{name: "group stream", cmd: CmdStartStreaming, addr: group, want: []byte{0x03, 0x05, 0x00}},
		{name: "raw stream", cmd: CmdStartStreaming, addr: single, want: []byte{0x03, 0x11, 0x00}},
		{name: "request programming", cmd: CmdRequestProgramming, addr: single, want: []byte{0x08, 0x11, 0x00}},
		{name: "enable individual", cmd: CmdEnable, addr: single, wantErr: true},
		{name: "programming group", cmd: CmdRequestProgramming, addr: group, wantErr: true},
		{name: "zero address", cmd: CmdEnable, addr: TargetAddress{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Build(tt.addr)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrWrongMode)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBuildStartTransfer(t *testing.T) {
	single, _ := Individual(9)
	frame, err := BuildStartTransfer(single, 360, 0x591261D7)
	require.NoError(t, err)
	require.Len(t, frame, ChunkFrameSize)
	require.Equal(t, byte(OpStartTransfer), frame[0])
	require.Equal(t, byte(9), frame[1])
	require.Equal(t, uint16(360), binary.LittleEndian.Uint16(frame[2:4]))
	require.Equal(t, uint32(0x591261D7), binary.LittleEndian.Uint32(frame[4:8]))
	require.Equal(t, make([]byte, ChunkFrameSize-StartTransferSize), frame[StartTransferSize:])

	group, _ := Group(1)
	_, err = BuildStartTransfer(group, 120, 0)
	require.ErrorIs(t, err, ErrWrongMode)
}

func TestOpcodeString(t *testing.T) {
	require.Equal(t, "ready-ack", OpReadyAck.String())
	require.Equal(t, "opcode(0x42)", Opcode(0x42).String())
}
