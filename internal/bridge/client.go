package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/radio"
	"go.uber.org/zap"
)

// DefaultCallTimeout bounds each request/response round trip.
const DefaultCallTimeout = 5 * time.Second

// Client is a radio.Transceiver backed by a remote bridge.
type Client struct {
	// Timeout bounds each call.
	Timeout time.Duration

	url    string
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID uint64
}

var _ radio.Transceiver = (*Client)(nil)

// Dial connects to the bridge at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to bridge %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to bridge %s: %w", url, err)
	}
	logging.LogConnection(url, "bridge_connected")
	return &Client{Timeout: DefaultCallTimeout, url: url, conn: conn}, nil
}

// URL returns the bridge address.
func (c *Client) URL() string { return c.url }

// Configure implements radio.Transceiver.
func (c *Client) Configure(p radio.ChannelParams) error {
	return c.call(MethodConfigure, p, nil)
}

// Start implements radio.Transceiver.
func (c *Client) Start() error { return c.call(MethodStart, nil, nil) }

// Stop implements radio.Transceiver.
func (c *Client) Stop() error { return c.call(MethodStop, nil, nil) }

// Send implements radio.Transceiver.
func (c *Client) Send(f radio.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return c.call(MethodSend, f, nil)
}

// TxStatus implements radio.Transceiver.
func (c *Client) TxStatus() (radio.TxStatus, error) {
	var status radio.TxStatus
	err := c.call(MethodTxStatus, nil, &status)
	return status, err
}

// Receive implements radio.Transceiver.
func (c *Client) Receive() ([]radio.Frame, error) {
	var frames []radio.Frame
	err := c.call(MethodReceive, nil, &frames)
	return frames, err
}

// Close says goodbye and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	logging.LogConnection(c.url, "bridge_closed")
	return c.conn.Close()
}

func (c *Client) call(method string, params, result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := Request{ID: c.nextID, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode %s params: %w", method, err)
		}
		req.Params = raw
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	deadline := time.Now().Add(timeout)

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("bridge %s: %w", method, err)
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("bridge %s: failed to send request: %w", method, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("bridge %s: %w", method, err)
	}
	var resp Response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("bridge %s: failed to read response: %w", method, err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("bridge %s: response id %d does not match request %d", method, resp.ID, req.ID)
	}
	if resp.Error != "" {
		return &RemoteError{Method: method, Message: resp.Error}
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("bridge %s: failed to decode result: %w", method, err)
		}
	}
	if method != MethodReceive && method != MethodTxStatus {
		logging.Debug("Bridge call", zap.String("method", method), zap.Uint64("id", req.ID))
	}
	return nil
}
