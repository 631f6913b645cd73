package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/aeolun/marain/pkg/protocol"
)

// MockSession is a test implementation of Transport
type MockSession struct {
	mu sync.RWMutex

	sendErr error
	closed  bool

	incoming     chan inbound
	remoteClosed chan struct{}
	closeOnce    sync.Once

	// Sent messages for verification
	SentMessages []protocol.ClientMsg
}

// NewMockSession creates a new mock session
func NewMockSession() *MockSession {
	return &MockSession{
		incoming:     make(chan inbound, 100),
		remoteClosed: make(chan struct{}),
	}
}

// Send records msg
func (m *MockSession) Send(msg protocol.ClientMsg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}

// Receive returns simulated messages in order, then ErrClosed once the
// remote side has been closed and the queue is drained
func (m *MockSession) Receive(ctx context.Context) (*protocol.ServerMsg, error) {
	select {
	case in := <-m.incoming:
		return in.msg, in.err
	default:
	}

	select {
	case in := <-m.incoming:
		return in.msg, in.err
	case <-m.remoteClosed:
		select {
		case in := <-m.incoming:
			return in.msg, in.err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the session closed
func (m *MockSession) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.SimulateRemoteClose()
	return nil
}

// Test helpers

// SetSendError sets an error to return from Send()
func (m *MockSession) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SimulateIncoming queues a message for Receive
func (m *MockSession) SimulateIncoming(msg *protocol.ServerMsg) {
	m.incoming <- inbound{msg: msg}
}

// SimulateFrameError queues a recoverable frame error for Receive
func (m *MockSession) SimulateFrameError(err error) {
	m.incoming <- inbound{err: &FrameError{Err: err}}
}

// SimulateRemoteClose makes Receive report ErrClosed after the queue drains
func (m *MockSession) SimulateRemoteClose() {
	m.closeOnce.Do(func() { close(m.remoteClosed) })
}

// SentCount returns the number of messages sent
func (m *MockSession) SentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentMessages)
}

// LastSent returns the last message sent, or error if none
func (m *MockSession) LastSent() (protocol.ClientMsg, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentMessages) == 0 {
		return protocol.ClientMsg{}, fmt.Errorf("no messages sent")
	}
	return m.SentMessages[len(m.SentMessages)-1], nil
}
