package action

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunCommandSucceeds(t *testing.T) {
	res := RunCommand(context.Background(), CommandParams{Command: "exit 0"}, Options{StartTime: time.Now()})
	if !res.Success {
		t.Errorf("RunCommand() Success = false, ErrorMessage = %q", res.ErrorMessage)
	}
	if !res.Finished {
		t.Error("RunCommand() Finished = false")
	}
}

func TestRunCommandCapturesExitCode(t *testing.T) {
	res := RunCommand(context.Background(), CommandParams{Command: "exit 7"}, Options{StartTime: time.Now()})
	if res.Success {
		t.Error("RunCommand() Success = true, want false")
	}
	if res.ExitCode != 7 {
		t.Errorf("RunCommand() ExitCode = %d, want 7", res.ExitCode)
	}
}

func TestRunCommandRejectsMissingCwd(t *testing.T) {
	res := RunCommand(context.Background(), CommandParams{
		Command: "exit 0",
		Cwd:     filepath.Join(t.TempDir(), "does-not-exist"),
	}, Options{StartTime: time.Now()})
	if res.Success {
		t.Error("RunCommand() should fail for a missing working directory")
	}
}

func TestRunCommandEnforcesTimeout(t *testing.T) {
	res := RunCommand(context.Background(), CommandParams{Command: "sleep 5"}, Options{
		Timeout:   50 * time.Millisecond,
		StartTime: time.Now(),
	})
	if res.Success {
		t.Error("RunCommand() should have timed out")
	}
	if !strings.Contains(res.ErrorMessage, "timed out") {
		t.Errorf("ErrorMessage = %q, want a timeout message", res.ErrorMessage)
	}
}

func TestRunCommandWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	res := RunCommand(context.Background(), CommandParams{
		Command:       "echo hello",
		LogToFilePath: logPath,
	}, Options{StartTime: time.Now()})
	if !res.Success {
		t.Fatalf("RunCommand() failed: %s", res.ErrorMessage)
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "hello") {
		t.Errorf("log file = %q, want it to contain %q", raw, "hello")
	}
}

func TestRunBinaryRejectsMissingPath(t *testing.T) {
	res := RunBinary(context.Background(), BinaryParams{Path: "/does/not/exist"}, Options{StartTime: time.Now()})
	if res.Success {
		t.Error("RunBinary() should fail for a missing executable")
	}
}

func TestTruncateStreamErrorBoundsLength(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := truncateStreamError(long)
	if len(got) != maxStreamErrorLen {
		t.Errorf("truncateStreamError() length = %d, want %d", len(got), maxStreamErrorLen)
	}
}

func TestTruncateStreamErrorNormalizesCRLF(t *testing.T) {
	got := truncateStreamError("line one\r\nline two")
	if strings.Contains(got, "\r\n") {
		t.Errorf("truncateStreamError() = %q, should not contain CRLF", got)
	}
	if !strings.Contains(got, "\n") {
		t.Errorf("truncateStreamError() = %q, should still contain a newline", got)
	}
}
