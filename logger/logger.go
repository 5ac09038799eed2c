// Package logger holds the process-wide structured logger.
//
// Output goes to stderr so it lands in the CI job log. Init additionally
// tees every record into a file, which is useful when running locally.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhubert/changeset-release/paths"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	logFile  *os.File
	mu       sync.Mutex
	logPath  string
	output   io.Writer = os.Stderr
)

// DefaultLogPath returns the default log file path under the state directory.
func DefaultLogPath() (string, error) {
	dir, err := paths.LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "changeset-release.log"), nil
}

// SetDebug enables or disables debug level logging
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// SetOutput replaces the writer the logger emits to. Tests use it to capture
// log lines in a buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	root = nil
}

// Init tees log output into the file at path in addition to stderr.
// Returns an error if the log file cannot be opened.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	logFile = f
	logPath = path
	root = slog.New(slog.NewTextHandler(io.MultiWriter(output, f), &slog.HandlerOptions{Level: levelVar}))

	root.Debug("logger initialized", "path", path)
	return nil
}

// Path returns the log file path set by Init, or "" when logging only to stderr.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// ensureInit builds the stderr logger on first use.
// Caller must hold mu.
func ensureInit() {
	if root != nil {
		return
	}
	root = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: levelVar}))
}

// Get returns the root logger instance.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return root
}

// WithRun returns a logger with the run ID attached.
// Every record logged during one invocation carries the same runID so
// interleaved CI logs can be told apart.
//
// Example:
//
//	log := logger.WithRun(runID)
//	log.Info("version pr updated", "number", 42)
//	// Output: level=INFO msg="version pr updated" runID=3f2c... number=42
func WithRun(runID string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return root.With("runID", runID)
}

// WithComponent returns a logger with the component name attached.
//
// Example:
//
//	log := logger.WithComponent("git")
//	log.Info("pushed branch", "branch", branch)
//	// Output: level=INFO msg="pushed branch" component=git branch=changeset-release/main
func WithComponent(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return root.With("component", component)
}

// Close closes the log file
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	root = nil
}

// Reset resets the logger state, allowing reinitialization.
// This is primarily for testing purposes.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logPath = ""
	root = nil
	output = os.Stderr
	levelVar = new(slog.LevelVar)
}
