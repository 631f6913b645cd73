package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigPathEnv names the variable that overrides the config file location
const ConfigPathEnv = "MARAIN_CONFIG_PATH"

// DefaultConfigPath is used when ConfigPathEnv is unset
const DefaultConfigPath = "~/.marain/config.toml"

// Config is the structure of the client config file
type Config struct {
	User    UserSection    `toml:"user"`
	Server  ServerSection  `toml:"server"`
	Client  ClientSection  `toml:"client"`
	Metrics MetricsSection `toml:"metrics"`
}

type UserSection struct {
	Username string `toml:"username"`
}

type ServerSection struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type ClientSection struct {
	UpdateIntervalMS int    `toml:"update_interval_ms"`
	RenderIntervalMS int    `toml:"render_interval_ms"`
	LogPath          string `toml:"log_path"`
	StatePath        string `toml:"state_path"`
	ThrottleBytes    int    `toml:"throttle_bytes_per_sec"`
	Notifications    bool   `toml:"notifications"`
}

type MetricsSection struct {
	// Listen address for /metrics, empty disables the endpoint
	Addr string `toml:"addr"`
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Server: ServerSection{
			Host: "localhost",
			Port: DefaultPort,
		},
		Client: ClientSection{
			UpdateIntervalMS: 250,
			RenderIntervalMS: 50,
			LogPath:          "~/.marain/client.log",
			StatePath:        "~/.marain/state.db",
			Notifications:    true,
		},
	}
}

// ConfigPath returns the config file location, honoring ConfigPathEnv
func ConfigPath() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	return DefaultConfigPath
}

// LoadConfig loads configuration from a TOML file, creates a default one if
// not found, and applies environment variable overrides
func LoadConfig(path string) (Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultConfig()
		// an unwritable config dir is not fatal, run with defaults
		_ = writeDefaultConfig(path)
		return applyEnvOverrides(config), nil
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return applyEnvOverrides(config), nil
}

// applyEnvOverrides applies MARAIN_SECTION_KEY environment overrides,
// e.g. MARAIN_SERVER_PORT=4000
func applyEnvOverrides(config Config) Config {
	if val := os.Getenv("MARAIN_USER_USERNAME"); val != "" {
		config.User.Username = val
	}

	if val := os.Getenv("MARAIN_SERVER_HOST"); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv("MARAIN_SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Server.Port = port
		}
	}

	if val := os.Getenv("MARAIN_CLIENT_UPDATE_INTERVAL_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			config.Client.UpdateIntervalMS = ms
		}
	}
	if val := os.Getenv("MARAIN_CLIENT_RENDER_INTERVAL_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			config.Client.RenderIntervalMS = ms
		}
	}
	if val := os.Getenv("MARAIN_CLIENT_LOG_PATH"); val != "" {
		config.Client.LogPath = val
	}
	if val := os.Getenv("MARAIN_CLIENT_STATE_PATH"); val != "" {
		config.Client.StatePath = val
	}
	if val := os.Getenv("MARAIN_CLIENT_THROTTLE_BYTES_PER_SEC"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Client.ThrottleBytes = n
		}
	}
	if val := os.Getenv("MARAIN_CLIENT_NOTIFICATIONS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			config.Client.Notifications = enabled
		}
	}

	if val := os.Getenv("MARAIN_METRICS_ADDR"); val != "" {
		config.Metrics.Addr = val
	}

	return config
}

// UpdateInterval returns the update tick period
func (c Config) UpdateInterval() time.Duration {
	if c.Client.UpdateIntervalMS <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.Client.UpdateIntervalMS) * time.Millisecond
}

// RenderInterval returns the render tick period
func (c Config) RenderInterval() time.Duration {
	if c.Client.RenderIntervalMS <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.Client.RenderIntervalMS) * time.Millisecond
}

// ExpandPath expands a leading ~/ to the user's home directory
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}

// writeDefaultConfig writes the default config with every option documented
func writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := `# marain client configuration
# This file was auto-generated with default values.
#
# Environment variables can override these settings:
# MARAIN_SECTION_KEY (e.g., MARAIN_SERVER_PORT=4000)
# MARAIN_CONFIG_PATH points the client at a different file.

[user]
# Name to log in with. A random name is generated when empty.
# username = "alice"

[server]
# Default server when none is given on the command line
host = "localhost"
port = 1337

[client]
# How often the client ticks its state machine, in milliseconds
update_interval_ms = 250

# How often the screen is redrawn, in milliseconds
render_interval_ms = 50

# Diagnostic log file (the terminal is used by the interface)
log_path = "~/.marain/client.log"

# SQLite database for connection history
state_path = "~/.marain/state.db"

# Outbound bandwidth limit, 0 = unlimited
# throttle_bytes_per_sec = 3600

# Show desktop notifications for server notices
notifications = true

[metrics]
# Serve prometheus metrics on this address, e.g. "127.0.0.1:9091"
# addr = ""
`

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
