//go:build windows

package action

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup starts cmd in a new process group
// (CREATE_NEW_PROCESS_GROUP), separate from the parent's console group.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// killProcessTree terminates cmd's process. Windows has no SIGKILL
// equivalent to reach a whole job object without job-object plumbing; a
// direct Kill of the top process is what the original used as well on
// this platform.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
