package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/radio"
)

func newBridge(t *testing.T, lb *radio.Loopback) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(NewServer(lb))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestClientRoundTrip(t *testing.T) {
	lb := radio.NewLoopback(func(sent radio.Frame) []radio.Frame {
		return []radio.Frame{{Payload: []byte{0x02, sent.Payload[1]}, RSSI: -71, Channel: 2}}
	})
	c, _ := newBridge(t, lb)

	params := radio.ChannelParams{
		Frequency:       869120000,
		Modulation:      radio.ModulationLoRa,
		Bandwidth:       125,
		SpreadingFactor: 8,
		CodingRate:      1,
		Preamble:        8,
	}
	require.NoError(t, c.Configure(params))
	require.Equal(t, []radio.ChannelParams{params}, lb.Configured())

	require.NoError(t, c.Start())
	require.True(t, lb.Started())

	require.NoError(t, c.Send(radio.Frame{Payload: []byte{0x01, 0x05, 0x00}}))
	sent := lb.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, []byte{0x01, 0x05, 0x00}, sent[0].Payload)

	status, err := c.TxStatus()
	require.NoError(t, err)
	require.Equal(t, radio.TxFree, status)

	frames, err := c.Receive()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []byte{0x02, 0x05}, frames[0].Payload)
	require.Equal(t, radio.StatusOK, frames[0].Status)
	require.Equal(t, float32(-71), frames[0].RSSI)
	require.Equal(t, uint8(2), frames[0].Channel)

	frames, err = c.Receive()
	require.NoError(t, err)
	require.Empty(t, frames)

	require.NoError(t, c.Stop())
	require.False(t, lb.Started())
}

func TestClientTxBusy(t *testing.T) {
	lb := radio.NewLoopback(nil)
	lb.BusyPolls = 2
	c, _ := newBridge(t, lb)
	require.NoError(t, c.Start())
	require.NoError(t, c.Send(radio.Frame{Payload: []byte{0x01, 0x01, 0x00}}))

	require.NoError(t, radio.WaitTxFree(context.Background(), c, time.Millisecond))
	status, err := c.TxStatus()
	require.NoError(t, err)
	require.Equal(t, radio.TxFree, status)
}

func TestClientRemoteError(t *testing.T) {
	lb := radio.NewLoopback(nil)
	c, _ := newBridge(t, lb)

	// not started
	err := c.Send(radio.Frame{Payload: []byte{0x01}})
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, MethodSend, remote.Method)
	require.Contains(t, remote.Message, radio.ErrNotStarted.Error())

	// the connection survives a failed call
	require.NoError(t, c.Start())
	require.NoError(t, c.Send(radio.Frame{Payload: []byte{0x01}}))
}

func TestClientRejectsOversizeLocally(t *testing.T) {
	lb := radio.NewLoopback(nil)
	c, _ := newBridge(t, lb)
	require.NoError(t, c.Start())

	err := c.Send(radio.Frame{Payload: make([]byte, radio.MaxPayloadSize+1)})
	require.ErrorIs(t, err, radio.ErrPayloadTooLarge)
	require.Empty(t, lb.Sent())
}

func TestServerUnknownMethod(t *testing.T) {
	srv := httptest.NewServer(NewServer(radio.NewLoopback(nil)))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Request{ID: 41, Method: "reboot"}))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, uint64(41), resp.ID)
	require.Contains(t, resp.Error, "unknown method")
}

func TestServerOneClientAtATime(t *testing.T) {
	_, srv := newBridge(t, radio.NewLoopback(nil))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListenAndServe(t *testing.T) {
	lb := radio.NewLoopback(nil)
	srv := NewServer(lb)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx, "127.0.0.1:0", "/radio", func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	c, err := Dial(context.Background(), "ws://"+addr.String()+"/radio")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.True(t, lb.Started())
	require.NoError(t, c.Close())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/radio")
	require.Error(t, err)
}

// Server and client log from different goroutines while the test swaps the
// global logger; run with -race.
func TestConnectionEventsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	srv := httptest.NewServer(NewServer(radio.NewLoopback(nil)))
	t.Cleanup(srv.Close)

	c, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	require.NoError(t, c.Start())
	require.NoError(t, c.Close())

	events := func(name string) int {
		return logs.FilterField(zap.String("event", name)).Len()
	}
	require.Eventually(t, func() bool { return events("websocket_closed") == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, 1, events("bridge_connected"))
	require.Equal(t, 1, events("websocket_upgraded"))
	require.Equal(t, 1, events("bridge_closed"))
}
