package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// PulseLog represents a single Pulse's completed invocation log entry.
type PulseLog struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	TraceID       string    `json:"trace_id,omitempty"`
	SpanID        string    `json:"span_id,omitempty"`
	PrismID       string    `json:"prism_id"`
	Frequency     string    `json:"frequency"`
	DurationMs    int64     `json:"duration_ms"`
	ColdStart     bool      `json:"cold_start"`
	Success       bool      `json:"success"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Error         string    `json:"error,omitempty"`
	InputSize     int       `json:"input_size"`
	PhotonCount   int       `json:"photon_count,omitempty"`
}

// Logger handles per-Pulse logging, separate from the operational logger
// returned by Op().
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file
func (l *Logger) SetOutput(path string) error {
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

// SetConsole enables/disables console output
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a Pulse log entry
func (l *Logger) Log(entry *PulseLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		cold := ""
		if entry.ColdStart {
			cold = " [cold]"
		}
		fmt.Printf("[pulse] %s %s %s/%s %dms%s\n",
			status, entry.CorrelationID, entry.PrismID, entry.Frequency, entry.DurationMs, cold)
		if entry.Error != "" {
			fmt.Printf("[pulse]   error(%s): %s\n", entry.ErrorKind, entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
