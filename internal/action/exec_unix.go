//go:build !windows

package action

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup configures cmd to start as the leader of a new process
// group, so killProcessTree can signal every descendant it spawned, not
// just the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessTree sends SIGKILL to the entire process group cmd's
// process leads, so a timed-out shell script's children are cleaned up
// along with the shell itself.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

// exitCode extracts a process's exit code from its exec error, or -1 if
// it could not be determined (e.g. the process was killed by a signal).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return -1
			}
			return status.ExitStatus()
		}
	}
	return -1
}
