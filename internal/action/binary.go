package action

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// BinaryParams configures a run of a bundled executable.
type BinaryParams struct {
	// Path is resolved against CustomFilesDir if it is not already
	// absolute.
	Path            string
	Args            []string
	CustomFilesDir  string
	LogToFilePath   string
	PipeToConsole   bool
}

// RunBinary executes a bundled binary with the given arguments. Output
// routing follows a fixed priority: a configured log file wins over
// piping to the console, which wins over simply inheriting the parent's
// streams.
func RunBinary(ctx context.Context, p BinaryParams, opts Options) Result {
	path := p.Path
	if !filepath.IsAbs(path) && p.CustomFilesDir != "" {
		path = filepath.Join(p.CustomFilesDir, path)
	}

	if _, err := os.Stat(path); err != nil {
		return errorResult(opts, -1, "binary not found: "+err.Error())
	}

	cmd := exec.CommandContext(ctx, path, p.Args...)

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
