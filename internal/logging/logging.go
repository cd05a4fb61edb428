package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// InitLogger configures the global slog logger with JSON output and level.
// Accepts levels: debug, info, warn, error. Defaults to info on unknown input.
func InitLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logs holds the request access log and the error log.
type Logs struct {
	Access *slog.Logger
	Error  *slog.Logger

	closers []io.Closer
}

// Open creates access.log and error.log under dir. An empty dir logs both to stdout.
func Open(dir string) (*Logs, error) {
	if dir == "" {
		return NewLogs(os.Stdout, os.Stdout), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	access, err := os.OpenFile(filepath.Join(dir, "access.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open access log: %w", err)
	}
	errLog, err := os.OpenFile(filepath.Join(dir, "error.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		access.Close()
		return nil, fmt.Errorf("open error log: %w", err)
	}
	logs := NewLogs(access, errLog)
	logs.closers = []io.Closer{access, errLog}
	return logs, nil
}

// NewLogs builds Logs over arbitrary writers.
func NewLogs(access, errw io.Writer) *Logs {
	return &Logs{
		Access: slog.New(slog.NewJSONHandler(access, nil)),
		Error:  slog.New(slog.NewJSONHandler(errw, nil)),
	}
}

// Discard returns Logs that drop everything.
func Discard() *Logs {
	return NewLogs(io.Discard, io.Discard)
}

func (l *Logs) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
