// Package log provides the process-wide loggers.
//
// Until Initialize is called every logger writes to stderr.
package log

import (
	"fmt"
	"io"
	golog "log"
	"os"
	"path/filepath"
	"sync"
)

var (
	InfoLog    = golog.New(os.Stderr, "INFO: ", golog.LstdFlags)
	WarningLog = golog.New(os.Stderr, "WARNING: ", golog.LstdFlags|golog.Lshortfile)
	ErrorLog   = golog.New(os.Stderr, "ERROR: ", golog.LstdFlags|golog.Lshortfile)

	mu      sync.Mutex
	logFile *os.File
)

// Initialize points all loggers at path (appending). An empty path keeps stderr.
func Initialize(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	setOutputLocked(f)
	return nil
}

// SetOutput redirects all loggers; tests use it to capture warnings.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	setOutputLocked(w)
}

func setOutputLocked(w io.Writer) {
	InfoLog.SetOutput(w)
	WarningLog.SetOutput(w)
	ErrorLog.SetOutput(w)
}

// Close releases the log file, if any, and falls back to stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return
	}
	setOutputLocked(os.Stderr)
	_ = logFile.Close()
	logFile = nil
}
