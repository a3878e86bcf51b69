package action

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"
)

// runProcess is the mechanics shared by the binary and command runners:
// start cmd as its own process group leader, enforce opts.Timeout by
// killing the whole tree if it's exceeded, and capture a stderr tail for
// the error message of a failing run. The tail is captured alongside
// whatever else cmd.Stderr is already wired to (a log file, the
// console) rather than only when nothing else claimed it, so piping
// output elsewhere never costs a failing step its error message.
func runProcess(ctx context.Context, cmd *exec.Cmd, opts Options) Result {
	var stderr bytes.Buffer
	if cmd.Stderr == nil {
		cmd.Stderr = &stderr
	} else {
		cmd.Stderr = io.MultiWriter(cmd.Stderr, &stderr)
	}

	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return errorResult(opts, -1, err.Error())
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case err := <-done:
		if err != nil {
			return errorResult(opts, exitCode(err), stderr.String())
		}
		return successResult(opts, 0)
	case <-timeoutC:
		_ = killProcessTree(cmd)
		<-done
		return errorResult(opts, -1, "Process timed out")
	case <-ctx.Done():
		_ = killProcessTree(cmd)
		<-done
		return errorResult(opts, -1, ctx.Err().Error())
	}
}
