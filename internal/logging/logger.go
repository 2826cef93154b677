package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AccessLog is one served cache API request.
type AccessLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Key        string    `json:"key,omitempty"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	Bytes      int       `json:"bytes,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// AccessLogger writes access lines as human-readable text to the console
// and, when a file is configured, as JSON lines to that file.
type AccessLogger struct {
	mu      sync.Mutex
	enabled bool
	console io.Writer
	file    *os.File
}

// NewAccessLogger creates a logger that prints to console (nil disables
// console output).
func NewAccessLogger(console io.Writer) *AccessLogger {
	return &AccessLogger{enabled: true, console: console}
}

// SetOutput appends JSON lines to path, replacing any previous file.
func (l *AccessLogger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetEnabled turns logging on or off.
func (l *AccessLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Log writes entry. A zero Timestamp is set to now.
func (l *AccessLogger) Log(entry *AccessLog) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if l.console != nil {
		fmt.Fprintf(l.console, "[access] %s %s %s %d %dms\n",
			entry.RequestID, entry.Method, entry.Path, entry.Status, entry.DurationMs)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[access]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *AccessLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
