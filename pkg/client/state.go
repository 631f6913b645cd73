package client

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// State manages client-side persistent state
type State struct {
	db  *sql.DB
	dir string // Directory where state is stored
}

// ServerRecord is one row of connection history
type ServerRecord struct {
	Address      string
	Username     string
	LastRoom     string
	LastSuccess  time.Time
	SuccessCount int
}

// migrations are applied in order; the index+1 is the schema version
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS Config (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ConnectionHistory (
		server_address  TEXT PRIMARY KEY,
		username        TEXT NOT NULL,
		last_room       TEXT NOT NULL DEFAULT '',
		last_success_at INTEGER NOT NULL,
		success_count   INTEGER NOT NULL DEFAULT 1
	)`,
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// OpenState opens or creates the client state database
func OpenState(path string) (*State, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Client only needs one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &State{db: db, dir: dir}, nil
}

// Close closes the state database
func (s *State) Close() error {
	return s.db.Close()
}

// GetConfig retrieves a configuration value, "" when unset
func (s *State) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value
func (s *State) SetConfig(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetLastUsername returns the username of the last successful login
func (s *State) GetLastUsername() string {
	username, _ := s.GetConfig("last_username")
	return username
}

// SetLastUsername stores the username of the last successful login
func (s *State) SetLastUsername(username string) error {
	return s.SetConfig("last_username", username)
}

// SaveSuccessfulConnection records a completed handshake against a server
func (s *State) SaveSuccessfulConnection(serverAddress, username string) error {
	_, err := s.db.Exec(`
		INSERT INTO ConnectionHistory (server_address, username, last_success_at)
		VALUES (?, ?, ?)
		ON CONFLICT(server_address) DO UPDATE SET
			username = excluded.username,
			last_success_at = excluded.last_success_at,
			success_count = success_count + 1
	`, serverAddress, username, time.Now().Unix())
	if err != nil {
		return err
	}
	return s.SetLastUsername(username)
}

// GetLastRoom returns the room the user was last in on a server
func (s *State) GetLastRoom(serverAddress string) (string, error) {
	var room string
	err := s.db.QueryRow(`SELECT last_room FROM ConnectionHistory WHERE server_address = ?`, serverAddress).Scan(&room)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return room, err
}

// SetLastRoom remembers the current room for a server seen before
func (s *State) SetLastRoom(serverAddress, room string) error {
	_, err := s.db.Exec(`UPDATE ConnectionHistory SET last_room = ? WHERE server_address = ?`, room, serverAddress)
	return err
}

// RecentServers lists connection history, most recent first
func (s *State) RecentServers(limit int) ([]ServerRecord, error) {
	rows, err := s.db.Query(`
		SELECT server_address, username, last_room, last_success_at, success_count
		FROM ConnectionHistory
		ORDER BY last_success_at DESC, server_address
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServerRecord
	for rows.Next() {
		var r ServerRecord
		var ts int64
		if err := rows.Scan(&r.Address, &r.Username, &r.LastRoom, &ts, &r.SuccessCount); err != nil {
			return nil, err
		}
		r.LastSuccess = time.Unix(ts, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStateDir returns the directory where state is stored
func (s *State) GetStateDir() string {
	return s.dir
}
