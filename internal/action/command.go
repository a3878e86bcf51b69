package action

import (
	"context"
	"os"
	"os/exec"
	"runtime"
)

// CommandParams configures a run of a shell command line.
type CommandParams struct {
	Command       string
	Cwd           string
	LogToFilePath string
	PipeToConsole bool
}

// RunCommand executes a command line through the host's shell (cmd.exe
// on Windows, sh elsewhere). Output routing follows the same priority as
// RunBinary: a configured log file wins over piping to the console,
// which wins over simply inheriting the parent's streams.
func RunCommand(ctx context.Context, p CommandParams, opts Options) Result {
	if p.Cwd != "" {
		if _, err := os.Stat(p.Cwd); err != nil {
			return errorResult(opts, -1, "working directory does not exist: "+err.Error())
		}
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", p.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", p.Command)
	}
	cmd.Dir = p.Cwd

	if p.LogToFilePath != "" {
		f, err := os.Create(p.LogToFilePath)
		if err != nil {
			return errorResult(opts, -1, "could not open log file: "+err.Error())
		}
		defer f.Close()
		cmd.Stdout = f
		cmd.Stderr = f
	} else if p.PipeToConsole {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		// An exec.Cmd with nil Stdout/Stderr discards its output, so
		// inheriting the parent's streams means handing them over.
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	return runProcess(ctx, cmd, opts)
}
