// Package action implements the runners for a workflow step: launching
// a bundled binary, a shell command, an interactive terminal, collecting
// files into the evidence sink, and scanning files against YARA rules.
// Each runner is independent of the workflow engine's YAML schema; it
// takes plain parameters and returns a Result the engine interprets.
package action

import (
	"time"
)

// Options are the parameters common to every runner: how long to allow
// the underlying process to run before it is killed, and whether this
// invocation is part of a parallel batch (carried through to Result so
// callers can tell parallel failures apart from sequential ones in
// logs).
type Options struct {
	Timeout   time.Duration
	Parallel  bool
	StartTime time.Time
}

// Result is the outcome of running one step.
type Result struct {
	Success       bool
	ExitCode      int
	ExecutionTime time.Duration
	ErrorMessage  string
	Parallel      bool
	Finished      bool
}

// errorResult builds a failed, finished Result, truncating long error
// messages and normalizing line endings the way captured subprocess
// stderr needs to be before it lands in a report. A caller that has no
// captured output at all (stdout/stderr piped elsewhere, process killed
// before writing anything) still gets a non-empty ErrorMessage.
func errorResult(opts Options, exitCode int, msg string) Result {
	errMsg := truncateStreamError(msg)
	if errMsg == "" {
		errMsg = "Process failed"
	}
	return Result{
		Success:       false,
		ExitCode:      exitCode,
		ExecutionTime: time.Since(opts.StartTime),
		ErrorMessage:  errMsg,
		Parallel:      opts.Parallel,
		Finished:      true,
	}
}

func successResult(opts Options, exitCode int) Result {
	return Result{
		Success:       true,
		ExitCode:      exitCode,
		ExecutionTime: time.Since(opts.StartTime),
		Parallel:      opts.Parallel,
		Finished:      true,
	}
}

// waitingResult builds an unfinished Result (Finished=false) for a step
// whose outcome is not known yet. No runner in this package returns it;
// the workflow engine waits for each parallel step's finished Result.
func waitingResult(opts Options) Result {
	return Result{
		Parallel: opts.Parallel,
		Finished: false,
	}
}

const maxStreamErrorLen = 200

// truncateStreamError bounds a captured stderr tail to a fixed length and
// normalizes Windows line endings, so a wall of subprocess output doesn't
// blow out the step's error message field.
func truncateStreamError(s string) string {
	s = normalizeNewlines(s)
	if len(s) <= maxStreamErrorLen {
		return s
	}
	return s[:maxStreamErrorLen]
}

func normalizeNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
