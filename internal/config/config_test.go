package config

import (
	"os"
	"testing"
	"time"
)

// writeTempFile creates a temporary file with the given content and
// extension, returning its path and a cleanup func. Kept verbatim from
// the teacher's config_test.go helper.
func writeTempFile(t *testing.T, content string, ext string) (path string, cleanup func()) {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "test-config-*"+ext)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name(), func() { os.Remove(tmpFile.Name()) }
}

func TestLoadConnectionConfig_TOML(t *testing.T) {
	path, cleanup := writeTempFile(t, `
request_headers_timeout = "15s"
heartbeat_interval = "2s"

[server_settings]
header_table_size = 8192
max_request_header_field_size = 32768

[logging]
log_level = "DEBUG"

[logging.error_log]
target = "stderr"
`, ".toml")
	defer cleanup()

	cfg, err := LoadConnectionConfig(path)
	if err != nil {
		t.Fatalf("LoadConnectionConfig: %v", err)
	}

	if cfg.ServerSettings.HeaderTableSize != 8192 {
		t.Errorf("HeaderTableSize = %d, want 8192", cfg.ServerSettings.HeaderTableSize)
	}
	if cfg.ServerSettings.MaxRequestHeaderFieldSize != 32768 {
		t.Errorf("MaxRequestHeaderFieldSize = %d, want 32768", cfg.ServerSettings.MaxRequestHeaderFieldSize)
	}
	if got := cfg.RequestHeadersTimeoutDuration(); got != 15*time.Second {
		t.Errorf("RequestHeadersTimeoutDuration = %v, want 15s", got)
	}
	if got := cfg.HeartbeatIntervalDuration(); got != 2*time.Second {
		t.Errorf("HeartbeatIntervalDuration = %v, want 2s", got)
	}
	if cfg.Logging.LogLevel != LogLevelDebug {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.Logging.LogLevel)
	}
}

func TestLoadConnectionConfig_JSON(t *testing.T) {
	path, cleanup := writeTempFile(t, `{
  "server_settings": {"header_table_size": 1024, "max_request_header_field_size": 2048},
  "request_headers_timeout": "5s",
  "heartbeat_interval": "500ms"
}`, ".json")
	defer cleanup()

	cfg, err := LoadConnectionConfig(path)
	if err != nil {
		t.Fatalf("LoadConnectionConfig: %v", err)
	}

	if cfg.ServerSettings.HeaderTableSize != 1024 {
		t.Errorf("HeaderTableSize = %d, want 1024", cfg.ServerSettings.HeaderTableSize)
	}
	if got := cfg.RequestHeadersTimeoutDuration(); got != 5*time.Second {
		t.Errorf("RequestHeadersTimeoutDuration = %v, want 5s", got)
	}
	if got := cfg.HeartbeatIntervalDuration(); got != 500*time.Millisecond {
		t.Errorf("HeartbeatIntervalDuration = %v, want 500ms", got)
	}
	// logging was unset in the JSON fixture; defaults must fill it in.
	if cfg.Logging == nil || cfg.Logging.ErrorLog == nil {
		t.Fatal("expected default Logging/ErrorLog to be filled in")
	}
	if cfg.Logging.ErrorLog.Target != "stderr" {
		t.Errorf("default ErrorLog.Target = %q, want stderr", cfg.Logging.ErrorLog.Target)
	}
}

func TestLoadConnectionConfig_MissingFile(t *testing.T) {
	if _, err := LoadConnectionConfig("/nonexistent/path/to/config.toml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestDurationFallbackOnMalformedValue(t *testing.T) {
	cfg := &ConnectionConfig{RequestHeadersTimeout: "not-a-duration"}
	if got := cfg.RequestHeadersTimeoutDuration(); got != 10*time.Second {
		t.Errorf("RequestHeadersTimeoutDuration fallback = %v, want 10s default", got)
	}
}

func TestIsFilePath(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		expected bool
	}{
		{"stdout", "stdout", false},
		{"stderr", "stderr", false},
		{"relative file", "logs/error.log", true},
		{"absolute file", "/var/log/h3dispatch/error.log", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsFilePath(tc.target); got != tc.expected {
				t.Errorf("IsFilePath(%q) = %v; want %v", tc.target, got, tc.expected)
			}
		})
	}
}
