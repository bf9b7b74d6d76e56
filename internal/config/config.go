// Package config loads the connection dispatcher's configuration: the
// SETTINGS values advertised on the outbound control stream, the
// starting-stream and heartbeat tuning, and logging target/level.
//
// Adapted from the teacher's internal/config/config.go (struct-tag-driven
// JSON/TOML config, LogLevel enum, IsFilePath target classification),
// trimmed to the fields this core actually consumes and with the loader
// the teacher left as a TODO now implemented.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// LogLevel defines the minimum severity ConnectionLogger emits.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// ServerSettingsConfig is the SETTINGS this core advertises on the
// outbound control stream at connection start (spec.md §3, §6).
type ServerSettingsConfig struct {
	HeaderTableSize           uint64 `json:"header_table_size,omitempty" toml:"header_table_size,omitempty"`
	MaxRequestHeaderFieldSize uint64 `json:"max_request_header_field_size,omitempty" toml:"max_request_header_field_size,omitempty"`
}

// ErrorLogConfig configures the ConnectionLogger's output target, kept
// from the teacher's ErrorLogConfig (no AccessLogConfig survives — this
// core has no HTTP access log, spec.md §4.6).
type ErrorLogConfig struct {
	Target string `json:"target,omitempty" toml:"target,omitempty"`
}

// LoggingConfig holds logging configuration, trimmed from the teacher's
// LoggingConfig to the ErrorLog-shaped half.
type LoggingConfig struct {
	LogLevel LogLevel        `json:"log_level,omitempty" toml:"log_level,omitempty"`
	ErrorLog *ErrorLogConfig `json:"error_log,omitempty" toml:"error_log,omitempty"`
}

// ConnectionConfig is the top-level configuration for one HTTP/3
// connection dispatcher: everything spec.md §3 calls "fixed at
// construction from server limits", plus logging.
type ConnectionConfig struct {
	ServerSettings        ServerSettingsConfig `json:"server_settings,omitempty" toml:"server_settings,omitempty"`
	RequestHeadersTimeout string               `json:"request_headers_timeout,omitempty" toml:"request_headers_timeout,omitempty"`
	HeartbeatInterval      string               `json:"heartbeat_interval,omitempty" toml:"heartbeat_interval,omitempty"`
	Logging               *LoggingConfig       `json:"logging,omitempty" toml:"logging,omitempty"`
}

// DefaultConnectionConfig mirrors the teacher's "apply defaults after
// load" convention (internal/config's TODO for default-application),
// sized per spec.md §9's example constants.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		ServerSettings: ServerSettingsConfig{
			HeaderTableSize:           4096,
			MaxRequestHeaderFieldSize: 16384,
		},
		RequestHeadersTimeout: "10s",
		HeartbeatInterval:     "1s",
		Logging: &LoggingConfig{
			LogLevel: LogLevelInfo,
			ErrorLog: &ErrorLogConfig{Target: "stderr"},
		},
	}
}

// LoadConnectionConfig reads path and unmarshals it as JSON or TOML,
// auto-detected exactly as the teacher's config.go doc comments describe
// ("JSON or TOML"): a leading '{' after trimming whitespace means JSON,
// otherwise TOML. Missing fields are filled from DefaultConnectionConfig.
func LoadConnectionConfig(path string) (*ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConnectionConfig()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s as JSON: %w", path, err)
		}
	} else {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s as TOML: %w", path, err)
		}
	}

	if cfg.Logging == nil {
		cfg.Logging = DefaultConnectionConfig().Logging
	}
	if cfg.Logging.ErrorLog == nil {
		cfg.Logging.ErrorLog = &ErrorLogConfig{Target: "stderr"}
	}

	return cfg, nil
}

// RequestHeadersTimeoutDuration parses RequestHeadersTimeout, defaulting
// to 10s if unset or malformed.
func (c *ConnectionConfig) RequestHeadersTimeoutDuration() time.Duration {
	return parseDurationOrDefault(c.RequestHeadersTimeout, 10*time.Second)
}

// HeartbeatIntervalDuration parses HeartbeatInterval, defaulting to 1s if
// unset or malformed.
func (c *ConnectionConfig) HeartbeatIntervalDuration() time.Duration {
	return parseDurationOrDefault(c.HeartbeatInterval, time.Second)
}

func parseDurationOrDefault(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// IsFilePath reports whether target names a filesystem path rather than
// one of the special stream targets "stdout"/"stderr". Reimplemented from
// the teacher's internal/config.IsFilePath (referenced by
// internal/logger's file-opening logic and config_test.go, but left
// unexported/undefined in the teacher's copy).
func IsFilePath(target string) bool {
	t := strings.TrimSpace(target)
	return t != "stdout" && t != "stderr"
}
