package client

import (
	"sync"
)

// MockState is an in-memory test implementation of StateStore
type MockState struct {
	mu sync.RWMutex

	config   map[string]string
	rooms    map[string]string
	servers  map[string]string // address -> username
	dir      string
	closed   bool
	setError error
}

// NewMockState creates a new mock state
func NewMockState() *MockState {
	return &MockState{
		config:  make(map[string]string),
		rooms:   make(map[string]string),
		servers: make(map[string]string),
		dir:     "/tmp/mock-state",
	}
}

// GetConfig retrieves a configuration value
func (s *MockState) GetConfig(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config[key], nil
}

// SetConfig stores a configuration value
func (s *MockState) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setError != nil {
		return s.setError
	}
	s.config[key] = value
	return nil
}

func (s *MockState) GetLastUsername() string {
	username, _ := s.GetConfig("last_username")
	return username
}

func (s *MockState) SetLastUsername(username string) error {
	return s.SetConfig("last_username", username)
}

func (s *MockState) SaveSuccessfulConnection(serverAddress, username string) error {
	s.mu.Lock()
	if s.setError != nil {
		s.mu.Unlock()
		return s.setError
	}
	s.servers[serverAddress] = username
	s.mu.Unlock()
	return s.SetLastUsername(username)
}

func (s *MockState) GetLastRoom(serverAddress string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[serverAddress], nil
}

// SetLastRoom only remembers rooms for servers seen before, like State
func (s *MockState) SetLastRoom(serverAddress, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setError != nil {
		return s.setError
	}
	if _, ok := s.servers[serverAddress]; ok {
		s.rooms[serverAddress] = room
	}
	return nil
}

func (s *MockState) GetStateDir() string {
	return s.dir
}

// Close closes the mock state (no-op for in-memory)
func (s *MockState) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Test helpers

// SetWriteError makes every write return err
func (s *MockState) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setError = err
}

// Closed reports whether Close was called
func (s *MockState) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
