// Package config handles configuration loading, validation, and persistence
// for the game server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "gameserver.json"
	DefaultGamePort   = 58000
	DefaultAPIPort    = 58080
	DefaultArchiveDSN = ":memory:"

	envPrefix = "CODEBREAKER_"
)

// Config is the root configuration structure of the game server.
type Config struct {
	mu   sync.RWMutex
	path string

	Server  ServerConfig  `json:"server"`
	Network NetworkConfig `json:"network"`
	API     APIConfig     `json:"api"`
	Archive ArchiveConfig `json:"archive"`
	MQTT    MQTTConfig    `json:"mqtt"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds the game protocol listener settings. Datagram and
// stream listeners share one port number.
type ServerConfig struct {
	Address             string `json:"address"`
	Port                int    `json:"port"`
	SweepIntervalSec    int    `json:"sweep_interval_sec"`
	StatsLogIntervalSec int    `json:"stats_log_interval_sec"`

	// CodeSeed fixes the secret code generator; 0 seeds from the clock.
	CodeSeed uint64 `json:"code_seed"`
}

// NetworkConfig bounds the resources a peer can consume.
type NetworkConfig struct {
	StreamWorkers        int     `json:"stream_workers"`
	StreamReadTimeoutMS  int     `json:"stream_read_timeout_ms"`
	StreamWriteTimeoutMS int     `json:"stream_write_timeout_ms"`
	DatagramRateLimit    float64 `json:"datagram_rate_limit"`
	DatagramBurst        int     `json:"datagram_burst"`
	LimiterIdleSec       int     `json:"limiter_idle_sec"`
}

// APIConfig holds the read-only HTTP status API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Address        string   `json:"address"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	RateLimitBurst int      `json:"rate_limit_burst"`
}

// ArchiveConfig holds the finished-game archive settings.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                DefaultGamePort,
			SweepIntervalSec:    1,
			StatsLogIntervalSec: 300,
		},
		Network: NetworkConfig{
			StreamWorkers:        64,
			StreamReadTimeoutMS:  500,
			StreamWriteTimeoutMS: 5000,
			DatagramRateLimit:    50,
			DatagramBurst:        100,
			LimiterIdleSec:       300,
		},
		API: APIConfig{
			Enabled:        false,
			Address:        "127.0.0.1",
			Port:           DefaultAPIPort,
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			DSN:     DefaultArchiveDSN,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Port:        1883,
			TopicPrefix: "codebreaker",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxBackups: 5,
			Console:    true,
		},
	}
}

// Load reads configuration from a JSON file in configDir, creating it with
// defaults when missing. Values from a .env file and CODEBREAKER_* variables
// are applied on top and are not written back.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)
	cfg := DefaultConfig()
	cfg.path = configPath

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Info().Str("path", configPath).Msg("config file not found, creating default")
		if saveErr := cfg.Save(); saveErr != nil {
			return nil, fmt.Errorf("failed to save default config: %w", saveErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
		log.Info().Str("path", configPath).Msg("configuration loaded")

		// Persist fields added since the file was written.
		if saveErr := cfg.Save(); saveErr != nil {
			log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("environment file loaded")
	return nil
}

func (c *Config) applyEnv() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv(envPrefix + "ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv(envPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT %q: %w", envPrefix, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "ARCHIVE_DSN"); v != "" {
		c.Archive.DSN = v
	}
	if v := os.Getenv(envPrefix + "MQTT_BROKER"); v != "" {
		c.MQTT.BrokerURL = v
	}
	return nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// SetPort overrides the game port, used for the -p flag.
func (c *Config) SetPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Server.Port = port
}

// SetLogLevel overrides the log level, used for the -v flag.
func (c *Config) SetLogLevel(level string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Logging.Level = level
}

// GameAddr is the address both game listeners bind to.
func (c *Config) GameAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// APIAddr is the address the HTTP API binds to.
func (c *Config) APIAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return net.JoinHostPort(c.API.Address, strconv.Itoa(c.API.Port))
}

// SweepInterval is the period of the session expiry sweep.
func (s ServerConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSec) * time.Second
}

// StatsLogInterval is the period of the registry statistics log line.
func (s ServerConfig) StatsLogInterval() time.Duration {
	return time.Duration(s.StatsLogIntervalSec) * time.Second
}

// StreamReadTimeout is the quiescence limit for a stream request.
func (n NetworkConfig) StreamReadTimeout() time.Duration {
	return time.Duration(n.StreamReadTimeoutMS) * time.Millisecond
}

// StreamWriteTimeout bounds writing a stream reply.
func (n NetworkConfig) StreamWriteTimeout() time.Duration {
	return time.Duration(n.StreamWriteTimeoutMS) * time.Millisecond
}

// LimiterIdle is how long an idle source keeps its rate limiter.
func (n NetworkConfig) LimiterIdle() time.Duration {
	return time.Duration(n.LimiterIdleSec) * time.Second
}
