package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration for values the server cannot run with
// (errors) and values that are probably mistakes (warnings).
func Validate(cfg *Config) *ValidationResult {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateNetwork(&cfg.Network, result)
	validateAPI(&cfg.API, cfg.Server.Port, result)
	validateArchive(&cfg.Archive, result)
	validateMQTT(&cfg.MQTT, result)

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		result.AddError("logging.level", fmt.Sprintf("unknown log level %q", cfg.Logging.Level))
	}

	return result
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	validatePort(s.Port, "server.port", result)

	if s.Address != "" && net.ParseIP(s.Address) == nil {
		result.AddWarning("server.address",
			fmt.Sprintf("%q is not an IP address, it will be resolved at start", s.Address))
	}

	if s.SweepIntervalSec < 1 {
		result.AddError("server.sweep_interval_sec", "sweep interval must be at least 1 second")
	}
	if s.SweepIntervalSec > 60 {
		result.AddWarning("server.sweep_interval_sec",
			"expired games are still ended on access, but the active session gauge will lag")
	}
	if s.StatsLogIntervalSec < 0 {
		result.AddError("server.stats_log_interval_sec", "must not be negative")
	}
}

func validateNetwork(n *NetworkConfig, result *ValidationResult) {
	if n.StreamWorkers < 1 {
		result.AddError("network.stream_workers", "must have at least 1 stream worker")
	}
	if n.StreamReadTimeoutMS < 1 {
		result.AddError("network.stream_read_timeout_ms", "read timeout must be positive")
	} else if n.StreamReadTimeoutMS > 5000 {
		result.AddWarning("network.stream_read_timeout_ms",
			"long read timeouts let idle peers hold stream workers")
	}
	if n.StreamWriteTimeoutMS < 1 {
		result.AddError("network.stream_write_timeout_ms", "write timeout must be positive")
	}
	if n.DatagramRateLimit <= 0 {
		result.AddWarning("network.datagram_rate_limit",
			"rate limit is disabled, a single peer can flood the game port")
	} else if n.DatagramBurst < 1 {
		result.AddError("network.datagram_burst", "burst must be at least 1 when rate limiting")
	}
	if n.LimiterIdleSec < 1 {
		result.AddError("network.limiter_idle_sec", "must be at least 1 second")
	}
}

func validateAPI(a *APIConfig, gamePort int, result *ValidationResult) {
	if !a.Enabled {
		return
	}
	validatePort(a.Port, "api.port", result)
	if a.Port == gamePort {
		result.AddError("api.port", "port conflict detected: API and game ports must differ")
	}
	if a.RateLimitRPS < 1 {
		result.AddWarning("api.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
	for _, origin := range a.AllowedOrigins {
		if origin == "*" {
			result.AddWarning("api.allowed_origins", "wildcard origin allows any site to read the API")
		}
	}
}

func validateArchive(a *ArchiveConfig, result *ValidationResult) {
	if a.Enabled && strings.TrimSpace(a.DSN) == "" {
		result.AddError("archive.dsn", "archive DSN is required when enabled")
	}
}

func validateMQTT(m *MQTTConfig, result *ValidationResult) {
	if !m.Enabled {
		return
	}
	if strings.TrimSpace(m.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if m.Port < 1 || m.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if m.UseTLS && (m.CertFile == "") != (m.KeyFile == "") {
		result.AddError("mqtt.cert_file", "client certificate and key must be set together")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}
