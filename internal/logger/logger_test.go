package logger

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"example.com/h3dispatch/internal/config"
)

func TestConnectionLogger_EmitsStructuredEventsToFile(t *testing.T) {
	tmp, err := os.CreateTemp("", "h3dispatch-log-*.jsonl")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	l, err := NewConnectionLogger(&config.LoggingConfig{
		LogLevel: config.LogLevelDebug,
		ErrorLog: &config.ErrorLogConfig{Target: path},
	})
	if err != nil {
		t.Fatalf("NewConnectionLogger: %v", err)
	}

	l.Http3ConnectionClosing("conn-1")
	l.RequestQueuedStart("conn-1", 4)
	l.Http3ConnectionError("conn-1", errors.New("boom"))
	l.CloseLogFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3: %q", len(lines), string(data))
	}

	var closing map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &closing); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if closing["event"] != "http3_connection_closing" {
		t.Errorf("event = %v, want http3_connection_closing", closing["event"])
	}
	if closing["connection_id"] != "conn-1" {
		t.Errorf("connection_id = %v, want conn-1", closing["connection_id"])
	}
	if closing["level"] != "info" {
		t.Errorf("level = %v, want info", closing["level"])
	}

	var errEvent map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &errEvent); err != nil {
		t.Fatalf("unmarshal third line: %v", err)
	}
	if errEvent["level"] != "error" {
		t.Errorf("level = %v, want error", errEvent["level"])
	}
}

func TestConnectionLogger_LevelFiltering(t *testing.T) {
	tmp, err := os.CreateTemp("", "h3dispatch-log-*.jsonl")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	l, err := NewConnectionLogger(&config.LoggingConfig{
		LogLevel: config.LogLevelInfo,
		ErrorLog: &config.ErrorLogConfig{Target: path},
	})
	if err != nil {
		t.Fatalf("NewConnectionLogger: %v", err)
	}

	l.RequestQueuedStart("conn-1", 4) // Debug, below the Info threshold
	l.Http3ConnectionClosing("conn-1")
	l.CloseLogFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1 (debug event should be filtered): %q", len(lines), string(data))
	}
}
