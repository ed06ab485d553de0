package radio

import (
	"sync"
)

// Responder computes the frames a remote population would send back in
// reaction to a transmitted frame.
type Responder func(sent Frame) []Frame

// Loopback is an in-memory Transceiver. Frames returned by the Responder
// and frames passed to Inject are delivered by the next Receive.
type Loopback struct {
	// BusyPolls is how many TxStatus calls report busy after each Send.
	BusyPolls int
	// SendErr and ReceiveErr, when set, are returned by Send and Receive.
	SendErr    error
	ReceiveErr error

	mu         sync.Mutex
	responder  Responder
	started    bool
	busyLeft   int
	configured []ChannelParams
	sent       []Frame
	pending    []Frame
}

// NewLoopback creates a Loopback that answers with responder (may be nil).
func NewLoopback(responder Responder) *Loopback {
	return &Loopback{responder: responder}
}

// SetResponder replaces the responder.
func (l *Loopback) SetResponder(r Responder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responder = r
}

// Configure implements Transceiver.
func (l *Loopback) Configure(p ChannelParams) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configured = append(l.configured, p)
	return nil
}

// Start implements Transceiver.
func (l *Loopback) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

// Stop implements Transceiver.
func (l *Loopback) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = false
	return nil
}

// Send implements Transceiver.
func (l *Loopback) Send(f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return ErrNotStarted
	}
	if l.SendErr != nil {
		err := l.SendErr
		l.mu.Unlock()
		return err
	}
	f = f.Clone()
	l.sent = append(l.sent, f)
	l.busyLeft = l.BusyPolls
	responder := l.responder
	l.mu.Unlock()

	if responder == nil {
		return nil
	}
	replies := responder(f)
	l.Inject(replies...)
	return nil
}

// TxStatus implements Transceiver.
func (l *Loopback) TxStatus() (TxStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busyLeft > 0 {
		l.busyLeft--
		return TxBusy, nil
	}
	return TxFree, nil
}

// Receive implements Transceiver.
func (l *Loopback) Receive() ([]Frame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return nil, ErrNotStarted
	}
	if l.ReceiveErr != nil {
		return nil, l.ReceiveErr
	}
	out := l.pending
	l.pending = nil
	return out, nil
}

// Inject queues frames for the next Receive. Frames without a status are
// marked StatusOK.
func (l *Loopback) Inject(frames ...Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range frames {
		f = f.Clone()
		if f.Status == StatusUndefined {
			f.Status = StatusOK
		}
		l.pending = append(l.pending, f)
	}
}

// Sent returns a copy of every frame passed to Send.
func (l *Loopback) Sent() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Frame, len(l.sent))
	for i, f := range l.sent {
		out[i] = f.Clone()
	}
	return out
}

// ResetSent forgets previously sent frames.
func (l *Loopback) ResetSent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = nil
}

// Configured returns every ChannelParams passed to Configure, in order.
func (l *Loopback) Configured() []ChannelParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ChannelParams(nil), l.configured...)
}

// Started reports whether Start was called more recently than Stop.
func (l *Loopback) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
