// Package logger implements spec.md §6's Observability Surface: the five
// structured events a Connection emits as it accepts, starts, errors, and
// closes.
//
// Adapted from the teacher's internal/logger (AccessLogger/ErrorLogger
// split, NewLogger(cfg), LogFields-style field maps, CloseLogFiles/
// ReopenLogFiles for SIGHUP rotation). There is no per-request access log
// here — this core never observes a response status or byte count, those
// live in the out-of-scope request pipeline — so only the ErrorLogger
// half survives, renamed ConnectionLogger, rebuilt on zerolog.Logger
// instead of the teacher's hand-rolled log.Logger + manual JSON.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"example.com/h3dispatch/internal/config"
)

// ConnectionLogger implements h3.ConnectionLogger without importing
// internal/h3 (the dependency runs the other way: cmd/h3dispatch wires a
// *ConnectionLogger wherever h3.ConnectionLogger is expected).
type ConnectionLogger struct {
	log zerolog.Logger

	mu     sync.Mutex
	output io.Writer
	target string
}

// NewConnectionLogger builds a ConnectionLogger from cfg. A "stdout"/
// "stderr" target with an attached terminal gets zerolog's colorable
// console writer; anything else (a file, or a non-terminal pipe) gets
// structured JSON — matching the teacher's doc-comment convention of
// human-readable interactive output vs. machine-readable piped/file
// output.
func NewConnectionLogger(cfg *config.LoggingConfig) (*ConnectionLogger, error) {
	if cfg == nil {
		cfg = &config.LoggingConfig{LogLevel: config.LogLevelInfo, ErrorLog: &config.ErrorLogConfig{Target: "stderr"}}
	}
	target := "stderr"
	if cfg.ErrorLog != nil && cfg.ErrorLog.Target != "" {
		target = cfg.ErrorLog.Target
	}

	output, err := openTarget(target)
	if err != nil {
		return nil, err
	}

	writer := consoleOrJSONWriter(target, output)
	zl := zerolog.New(writer).Level(zerologLevel(cfg.LogLevel)).With().Timestamp().Logger()

	return &ConnectionLogger{log: zl, output: output, target: target}, nil
}

func openTarget(target string) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	default:
		return os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}
}

// consoleOrJSONWriter mirrors the teacher's convention of formatting
// differently depending on where output is headed: a real terminal gets
// zerolog's colorable console writer, anything else (file, pipe, redirect)
// gets structured JSON lines.
func consoleOrJSONWriter(target string, output io.Writer) io.Writer {
	if target != "stdout" && target != "stderr" {
		return output
	}
	f, ok := output.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return output
	}
	return zerolog.ConsoleWriter{Out: colorable.NewColorable(f)}
}

func zerologLevel(l config.LogLevel) zerolog.Level {
	switch strings.ToUpper(string(l)) {
	case string(config.LogLevelDebug):
		return zerolog.DebugLevel
	case string(config.LogLevelWarning):
		return zerolog.WarnLevel
	case string(config.LogLevelError):
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Http3ConnectionClosing logs the Draining-state entry event.
func (l *ConnectionLogger) Http3ConnectionClosing(connectionID string) {
	l.log.Info().Str("event", "http3_connection_closing").Str("connection_id", connectionID).Send()
}

// Http3ConnectionClosed logs the single terminal-GOAWAY event.
func (l *ConnectionLogger) Http3ConnectionClosed(connectionID string, highestStreamID uint64) {
	l.log.Info().
		Str("event", "http3_connection_closed").
		Str("connection_id", connectionID).
		Uint64("highest_stream_id", highestStreamID).
		Send()
}

// Http3ConnectionError logs a connection-wide fault that triggered abort.
func (l *ConnectionLogger) Http3ConnectionError(connectionID string, err error) {
	l.log.Error().
		Str("event", "http3_connection_error").
		Str("connection_id", connectionID).
		Err(err).
		Send()
}

// RequestProcessingError logs a fault confined to a single request stream.
func (l *ConnectionLogger) RequestProcessingError(connectionID string, err error) {
	l.log.Error().
		Str("event", "request_processing_error").
		Str("connection_id", connectionID).
		Err(err).
		Send()
}

// RequestQueuedStart logs a request stream entering the StartingStreamQueue.
func (l *ConnectionLogger) RequestQueuedStart(connectionID string, streamID uint64) {
	l.log.Debug().
		Str("event", "request_queued_start").
		Str("connection_id", connectionID).
		Uint64("stream_id", streamID).
		Send()
}

// CloseLogFiles closes the underlying output if it is a file, for
// graceful-shutdown cleanup. Kept from the teacher's Logger.CloseLogFiles.
func (l *ConnectionLogger) CloseLogFiles() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.output.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		f.Close()
	}
}

// ReopenLogFiles reopens a file target, for SIGHUP-triggered log rotation
// (kept from the teacher's Logger.ReopenLogFiles).
func (l *ConnectionLogger) ReopenLogFiles() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !config.IsFilePath(l.target) {
		return nil
	}
	if f, ok := l.output.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		f.Close()
	}
	newOutput, err := openTarget(l.target)
	if err != nil {
		return err
	}
	l.output = newOutput
	l.log = l.log.Output(consoleOrJSONWriter(l.target, newOutput))
	return nil
}
