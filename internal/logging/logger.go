package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Option configures RuntimeLogger creation.
type Option func(*newOptions)

type newOptions struct {
	runID   string
	level   string
	logDir  string
	console io.Writer
}

// WithRunID configures the run_id field used in emitted log records.
func WithRunID(runID string) Option {
	return func(opts *newOptions) {
		opts.runID = strings.TrimSpace(runID)
	}
}

// WithLevel sets the minimum level: debug, info, warn or error.
func WithLevel(level string) Option {
	return func(opts *newOptions) {
		opts.level = strings.TrimSpace(level)
	}
}

// WithLogDir sends JSON records to a timestamped file in dir instead of the
// console.
func WithLogDir(dir string) Option {
	return func(opts *newOptions) {
		opts.logDir = strings.TrimSpace(dir)
	}
}

// WithConsole replaces stderr as the text destination.
func WithConsole(w io.Writer) Option {
	return func(opts *newOptions) {
		opts.console = w
	}
}

// RuntimeLogger writes text records to stderr, or structured JSON records
// to disk when a log directory is configured. It never writes to stdout,
// which carries the game trace.
type RuntimeLogger struct {
	Logger     *log.Logger
	file       *os.File
	path       string
	baseLogger *log.Logger
	runID      string
}

// New initializes logging.
func New(ctx context.Context, options ...Option) (*RuntimeLogger, error) {
	resolved := resolveOptions(options)

	level, err := log.ParseLevel(resolved.level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	runtimeLogger := &RuntimeLogger{runID: resolved.runID}

	if resolved.logDir == "" {
		runtimeLogger.baseLogger = log.NewWithOptions(resolved.console, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		})
		runtimeLogger.rebuildLogger()
		_ = ctx
		return runtimeLogger, nil
	}

	if err := os.MkdirAll(resolved.logDir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	timestamp := time.Now().UTC().Format("20060102-150405")
	fileName := fmt.Sprintf("caveagent-%s.log", timestamp)
	if resolved.runID != "" {
		fileName = fmt.Sprintf("caveagent-%s-%s.log", timestamp, resolved.runID)
	}
	filePath := filepath.Join(resolved.logDir, fileName)
	// #nosec G304 -- filePath is constructed from trusted local paths.
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.NewWithOptions(file, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	logger.SetFormatter(log.JSONFormatter)

	runtimeLogger.file = file
	runtimeLogger.path = filePath
	runtimeLogger.baseLogger = logger
	runtimeLogger.rebuildLogger()
	runtimeLogger.Logger.With("log_file", filePath).Info("logger initialized")

	_ = ctx
	return runtimeLogger, nil
}

// WithRunID updates the run_id field for subsequent log records.
func (r *RuntimeLogger) WithRunID(runID string) *RuntimeLogger {
	if r == nil {
		return nil
	}
	r.runID = strings.TrimSpace(runID)
	r.rebuildLogger()
	return r
}

// RunID returns the run_id stamped on records.
func (r *RuntimeLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Close flushes and closes the log file.
func (r *RuntimeLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Path returns the current log file path, empty when logging to stderr.
func (r *RuntimeLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

func (r *RuntimeLogger) rebuildLogger() {
	if r == nil || r.baseLogger == nil {
		return
	}
	if r.runID == "" {
		r.Logger = r.baseLogger.With()
		return
	}
	r.Logger = r.baseLogger.With("run_id", r.runID)
}

func resolveOptions(options []Option) newOptions {
	resolved := newOptions{level: "info", console: os.Stderr}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&resolved)
	}
	if resolved.console == nil {
		resolved.console = os.Stderr
	}
	if resolved.level == "" {
		resolved.level = "info"
	}
	return resolved
}
