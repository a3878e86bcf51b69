package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")

	logger, closeFn, err := New(logPath, "run-123")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeFn()

	logger.Info("collection started", "step", "binary-collect")

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "run-123") {
		t.Errorf("log file missing run id: %q", raw)
	}
	if !strings.Contains(string(raw), "collection started") {
		t.Errorf("log file missing message: %q", raw)
	}
}

func TestNewDiscardDoesNotPanic(t *testing.T) {
	logger := NewDiscard()
	logger.Info("noop")
}
