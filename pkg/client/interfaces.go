package client

import (
	"context"

	"github.com/aeolun/marain/pkg/protocol"
)

// Transport is the live side of a session as seen by the event loop.
// *Session implements it; MockSession stands in for it in tests.
type Transport interface {
	// Send queues an encrypted message without blocking
	Send(msg protocol.ClientMsg) error
	// Receive blocks for the next inbound message. *FrameError is
	// recoverable, ErrClosed means the connection is gone.
	Receive(ctx context.Context) (*protocol.ServerMsg, error)
	Close() error
}

// StateStore defines client state persistence.
// *State implements it; MockState keeps everything in memory.
type StateStore interface {
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	GetLastUsername() string
	SetLastUsername(username string) error

	SaveSuccessfulConnection(serverAddress, username string) error
	GetLastRoom(serverAddress string) (string, error)
	SetLastRoom(serverAddress, room string) error

	GetStateDir() string
	Close() error
}

var (
	_ Transport  = (*Session)(nil)
	_ Transport  = (*MockSession)(nil)
	_ StateStore = (*State)(nil)
	_ StateStore = (*MockState)(nil)
)
