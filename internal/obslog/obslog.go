// Package obslog wires up structured logging for the collector binary:
// every run's events go to stderr for the operator
// watching the terminal, and simultaneously to a log file inside the
// report directory so the run's own record travels with the evidence.
package obslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New builds a slog.Logger that writes JSON lines to both os.Stderr and
// logPath, tagged with the run's identifier so log lines from concurrent
// collector processes on the same host can be told apart.
func New(logPath, runID string) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("obslog: open log file: %w", err)
	}

	writer := io.MultiWriter(os.Stderr, f)
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With(slog.String("run_id", runID))

	return logger, f.Close, nil
}

// NewDiscard returns a Logger that drops everything, for code paths
// (such as tests) that need a Logger but no output.
func NewDiscard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
