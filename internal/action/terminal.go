package action

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// TerminalParams configures an interactive command launched in a visible
// terminal window.
type TerminalParams struct {
	Command        string
	SeparateWindow bool
	// Wait controls whether the step tracks the launched process to
	// completion. When false, RunTerminal reports success as soon as the
	// process has started and never waits on it.
	Wait             bool
	EnableTranscript bool
	TranscriptPath   string
}

// linuxTerminalEmulators is checked in priority order: the first one
// found on PATH hosts the command. If none is found, the command runs
// inline against the collector's own console rather than failing the
// step.
var linuxTerminalEmulators = []string{"gnome-terminal", "konsole", "xfce4-terminal", "lxterminal", "terminology", "xterm"}

// RunTerminal launches Command in a terminal window appropriate to the
// host platform. When SeparateWindow is false, or SeparateWindow is true
// but no terminal emulator can be found on PATH, the command instead
// runs attached to the collector's own console. When Wait is false, the
// step reports success the instant the process starts and the child is
// never awaited.
func RunTerminal(ctx context.Context, p TerminalParams, opts Options) Result {
	command := p.Command
	if p.EnableTranscript {
		command = wrapTranscript(command, p.TranscriptPath)
	}

	cmd, inTerminal := buildTerminalCommand(ctx, command)
	if !p.SeparateWindow || !inTerminal {
		cmd = inlineShellCommand(ctx, command)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Stdin = os.Stdin
	}

	if !p.Wait {
		setProcessGroup(cmd)
		if err := cmd.Start(); err != nil {
			return errorResult(opts, -1, err.Error())
		}
		go func() { _ = cmd.Wait() }() // reap the child without tracking it
		return successResult(opts, 0)
	}

	return runProcess(ctx, cmd, opts)
}

// buildTerminalCommand resolves a terminal emulator for the host and
// wraps command to run inside it. ok is false when no suitable emulator
// exists (always true on Windows and macOS), signaling the caller to
// fall back to inline execution.
func buildTerminalCommand(ctx context.Context, command string) (cmd *exec.Cmd, ok bool) {
	switch runtime.GOOS {
	case "windows":
		return exec.CommandContext(ctx, "cmd.exe", "/C", "start", "cmd.exe", "/K", command), true
	case "darwin":
		script := fmt.Sprintf(`tell application "Terminal" to do script %q`, command)
		return exec.CommandContext(ctx, "osascript", "-e", script), true
	default:
		for _, candidate := range linuxTerminalEmulators {
			if path, err := exec.LookPath(candidate); err == nil {
				return exec.CommandContext(ctx, path, "-e", command), true
			}
		}
		return nil, false
	}
}

// inlineShellCommand runs command through the host's interactive shell,
// attached to whatever streams the caller assigns, rather than inside a
// terminal emulator's own window.
func inlineShellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, getShell(), "/C", command)
	}
	return exec.CommandContext(ctx, getShell(), "-c", command)
}

// getShell resolves the interactive shell to use for a host, consulting
// $SHELL first on unix-likes and falling back to a well-known default.
func getShell() string {
	if runtime.GOOS == "windows" {
		return "cmd.exe"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// wrapTranscript wraps command so the whole terminal session, not just
// its own stdout/stderr, is captured to path: Start-Transcript on
// Windows, script(1) elsewhere.
func wrapTranscript(command, path string) string {
	if path == "" {
		path = "transcript.log"
	}
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(`powershell -NoProfile -Command "Start-Transcript -Path '%s'; %s; Stop-Transcript"`, path, command)
	}
	return fmt.Sprintf("script -q -c %s %s", shellQuote(command), shellQuote(path))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
