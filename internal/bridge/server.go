package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/lorahub/internal/logging"
	"github.com/muurk/lorahub/internal/radio"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed between two requests before the client is dropped
	idleTimeout = 60 * time.Second

	// Maximum request size; a send carries at most 255 bytes of payload
	maxMessageSize = 4096
)

// Server exposes a transceiver to one remote client at a time.
type Server struct {
	radio    radio.Transceiver
	upgrader websocket.Upgrader

	mu     sync.Mutex
	active string // remote address of the connected client
}

// NewServer wraps tr.
func NewServer(tr radio.Transceiver) *Server {
	return &Server{
		radio: tr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP upgrades the request and serves calls until the client leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		http.Error(w, fmt.Sprintf("radio in use by %s", active), http.StatusConflict)
		return
	}
	s.active = r.RemoteAddr
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = ""
		s.mu.Unlock()
	}()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	logging.LogConnection(r.RemoteAddr, "websocket_upgraded")
	defer func() {
		_ = conn.Close()
		logging.LogConnection(r.RemoteAddr, "websocket_closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Connection closed or error reading request",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		resp := s.dispatch(req)
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := conn.WriteJSON(resp); err != nil {
			logging.Warn("Failed to write response", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{ID: req.ID}
	var (
		result interface{}
		err    error
	)

	switch req.Method {
	case MethodConfigure:
		var p radio.ChannelParams
		if err = json.Unmarshal(req.Params, &p); err == nil {
			err = s.radio.Configure(p)
		}
	case MethodStart:
		err = s.radio.Start()
	case MethodStop:
		err = s.radio.Stop()
	case MethodSend:
		var f radio.Frame
		if err = json.Unmarshal(req.Params, &f); err == nil {
			err = s.radio.Send(f)
		}
	case MethodTxStatus:
		result, err = s.radio.TxStatus()
	case MethodReceive:
		var frames []radio.Frame
		frames, err = s.radio.Receive()
		if frames == nil {
			frames = []radio.Frame{}
		}
		result = frames
	default:
		err = fmt.Errorf("unknown method %q", req.Method)
	}

	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	if result != nil {
		raw, merr := json.Marshal(result)
		if merr != nil {
			resp.Error = merr.Error()
			return resp
		}
		resp.Result = raw
	}
	return resp
}

// ListenAndServe serves the bridge on addr at path until ctx is done.
// ready, when not nil, receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, addr, path string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, s)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	logging.Info("Bridge listening", zap.String("addr", ln.Addr().String()), zap.String("path", path))
	if ready != nil {
		ready(ln.Addr())
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutting down bridge...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
