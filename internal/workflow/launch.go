package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// Check evaluates lc against the running host, returning an error naming
// the first condition that fails. An empty LaunchConditionsConfig always
// passes.
func (lc LaunchConditionsConfig) Check(ctx context.Context) error {
	if len(lc.OS) > 0 && !contains(lc.OS, runtime.GOOS) {
		return fmt.Errorf("launch_conditions: host os %q is not in %v", runtime.GOOS, lc.OS)
	}
	if len(lc.Arch) > 0 && !contains(lc.Arch, runtime.GOARCH) {
		return fmt.Errorf("launch_conditions: host arch %q is not in %v", runtime.GOARCH, lc.Arch)
	}
	if lc.RequireElevation && !isElevated() {
		return fmt.Errorf("launch_conditions: this workflow requires an elevated process")
	}
	if lc.CustomCommand != "" {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := shellCommand(cctx, lc.CustomCommand).Run(); err != nil {
			return fmt.Errorf("launch_conditions: custom_command probe failed: %w", err)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// isElevated reports whether the current process runs with administrative
// privileges. On unix-likes this is exactly "running as root"; Windows
// elevation (a split token under UAC) can't be checked from the standard
// library alone, so an elevated Windows process is assumed rather than
// misdetected as unprivileged.
func isElevated() bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return os.Geteuid() == 0
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd.exe", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}
