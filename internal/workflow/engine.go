package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/duskline/irkit/internal/action"
	"github.com/duskline/irkit/internal/sink"
	"github.com/duskline/irkit/internal/sysvars"
)

// RunContext carries everything a step needs that isn't part of its own
// YAML configuration: the substitution variables for this host, the
// evidence sink steps feed into, where bundled binaries live, and a
// logger.
type RunContext struct {
	Vars           map[string]string
	Sink           *sink.Processor
	CustomFilesDir string
	ScanWorkers    int
	Logger         *slog.Logger
	// Actions is the workflow's named action registry, keyed by name, so
	// a step's Uses reference can be resolved without re-walking the
	// Definition.Actions slice on every step.
	Actions map[string]ActionDef
}

// StepOutcome pairs a step's name with what happened when it ran.
type StepOutcome struct {
	StepName string
	Result   action.Result
}

// stepResult is the internal message shape used to drain a parallel
// batch; it carries the originating step alongside its result so the
// engine can still look up that step's on_error policy after the batch
// completes in whatever order the steps actually finished in.
type stepResult struct {
	step   Step
	result action.Result
}

// Run executes every step of def in order, honoring each step's
// on_error policy and grouping contiguous runs of parallel-marked steps
// into a single concurrent batch.
func Run(ctx context.Context, def Definition, rc RunContext) ([]StepOutcome, error) {
	index := make(map[string]int, len(def.Steps))
	for i, step := range def.Steps {
		index[step.Name] = i
	}

	if rc.Actions == nil {
		rc.Actions = make(map[string]ActionDef, len(def.Actions))
		for _, a := range def.Actions {
			rc.Actions[a.Name] = a.ActionDef
		}
	}

	var outcomes []StepOutcome
	i := 0
	for i < len(def.Steps) {
		step, err := resolveStep(def.Steps[i], rc.Actions)
		if err != nil {
			return outcomes, err
		}

		if step.Parallel {
			batchEnd := i
			for batchEnd < len(def.Steps) && def.Steps[batchEnd].Parallel {
				batchEnd++
			}
			batch := make([]Step, 0, batchEnd-i)
			for _, s := range def.Steps[i:batchEnd] {
				resolved, err := resolveStep(s, rc.Actions)
				if err != nil {
					return outcomes, err
				}
				batch = append(batch, resolved)
			}

			results := runParallelBatch(ctx, batch, rc)
			for _, r := range results {
				outcomes = append(outcomes, StepOutcome{StepName: r.step.Name, Result: r.result})
			}

			next, stop, err := dispatchBatch(results, index, batchEnd)
			if err != nil {
				return outcomes, err
			}
			if stop {
				return outcomes, nil
			}
			i = next
			continue
		}

		result := runStep(ctx, step, rc)
		outcomes = append(outcomes, StepOutcome{StepName: step.Name, Result: result})

		if rc.Logger != nil {
			rc.Logger.Info("step finished", "step", step.Name, "success", result.Success)
		}

		if step.WaitForKeypress {
			waitForKeypress()
		}

		if result.Success {
			i++
			continue
		}

		next, stop, err := dispatchOnError(step, index, i+1)
		if err != nil {
			return outcomes, err
		}
		if stop {
			return outcomes, nil
		}
		i = next
	}
	return outcomes, nil
}

// resolveStep merges a step's named action (Uses) into it: fields left
// unset inline fall back to the registry entry's. A step with no Uses is
// returned unchanged.
func resolveStep(step Step, actions map[string]ActionDef) (Step, error) {
	if step.Uses == "" {
		return step, nil
	}
	def, ok := actions[step.Uses]
	if !ok {
		return step, fmt.Errorf("workflow: step %q: uses unknown action %q", step.Name, step.Uses)
	}
	if step.Type == "" {
		step.Type = def.Type
	}
	if step.Binary == nil {
		step.Binary = def.Binary
	}
	if step.Command == nil {
		step.Command = def.Command
	}
	if step.Store == nil {
		step.Store = def.Store
	}
	if step.Yara == nil {
		step.Yara = def.Yara
	}
	if step.Terminal == nil {
		step.Terminal = def.Terminal
	}
	return step, nil
}

// runParallelBatch launches every step in batch concurrently and drains
// them by completion order rather than a sync.WaitGroup.Wait() barrier:
// a buffered channel sized to the batch holds every result as soon as
// its goroutine finishes, and the receive loop below pulls results out
// in whatever order they actually arrive, matching the original async
// runtime's FuturesUnordered draining rather than forcing a fixed order.
func runParallelBatch(ctx context.Context, batch []Step, rc RunContext) []stepResult {
	ch := make(chan stepResult, len(batch))
	for _, step := range batch {
		step := step
		go func() {
			ch <- stepResult{step: step, result: runStep(ctx, step, rc)}
		}()
	}

	results := make([]stepResult, 0, len(batch))
	for range batch {
		r := <-ch
		results = append(results, r)
		if rc.Logger != nil {
			rc.Logger.Info("parallel step finished", "step", r.step.Name, "success", r.result.Success)
		}
	}
	return results
}

// dispatchBatch applies on_error policy across a finished parallel
// batch: the first failing step in completion order determines whether
// the run aborts or jumps via goto; if every step in the batch
// succeeded, execution simply continues after the batch.
func dispatchBatch(results []stepResult, index map[string]int, fallthroughIdx int) (next int, stop bool, err error) {
	for _, r := range results {
		if r.result.Success {
			continue
		}
		return dispatchOnError(r.step, index, fallthroughIdx)
	}
	return fallthroughIdx, false, nil
}

// dispatchOnError applies a single failed step's on_error policy. Abort
// returns stop=true with a non-nil fatal error so Run's caller can tell
// an intentionally aborted run apart from one that completed clean.
func dispatchOnError(step Step, index map[string]int, fallthroughIdx int) (next int, stop bool, err error) {
	switch step.OnError.Action {
	case OnErrorAbort, "":
		return 0, true, fmt.Errorf("workflow: step %q failed and on_error is abort", step.Name)
	case OnErrorContinue:
		return fallthroughIdx, false, nil
	case OnErrorGoto:
		target, ok := index[step.OnError.Goto]
		if !ok {
			return 0, false, fmt.Errorf("workflow: step %q: goto target %q not found", step.Name, step.OnError.Goto)
		}
		return target, false, nil
	default:
		return 0, false, fmt.Errorf("workflow: step %q: unknown on_error action %q", step.Name, step.OnError.Action)
	}
}

func runStep(ctx context.Context, step Step, rc RunContext) action.Result {
	opts := action.Options{
		Timeout:   time.Duration(step.TimeoutSeconds) * time.Second,
		Parallel:  step.Parallel,
		StartTime: time.Now(),
	}

	switch step.Type {
	case ActionBinary:
		if step.Binary == nil {
			return action.Result{Success: false, ErrorMessage: "binary step missing binary config", Finished: true}
		}
		return action.RunBinary(ctx, action.BinaryParams{
			Path:           sysvars.Substitute(step.Binary.Path, rc.Vars),
			Args:           substituteAll(step.Binary.Args, rc.Vars),
			CustomFilesDir: rc.CustomFilesDir,
			LogToFilePath:  sysvars.Substitute(step.Binary.LogToFile, rc.Vars),
			PipeToConsole:  step.Binary.PipeOutput,
		}, opts)

	case ActionCommand:
		if step.Command == nil {
			return action.Result{Success: false, ErrorMessage: "command step missing command config", Finished: true}
		}
		return action.RunCommand(ctx, action.CommandParams{
			Command:       sysvars.Substitute(step.Command.Command, rc.Vars),
			Cwd:           sysvars.Substitute(step.Command.Cwd, rc.Vars),
			LogToFilePath: sysvars.Substitute(step.Command.LogToFile, rc.Vars),
			PipeToConsole: step.Command.PipeOutput,
		}, opts)

	case ActionTerminal:
		if step.Terminal == nil {
			return action.Result{Success: false, ErrorMessage: "terminal step missing terminal config", Finished: true}
		}
		return action.RunTerminal(ctx, action.TerminalParams{
			Command:          sysvars.Substitute(step.Terminal.Command, rc.Vars),
			SeparateWindow:   step.Terminal.SeparateWindow,
			Wait:             step.Terminal.Wait,
			EnableTranscript: step.Terminal.EnableTranscript,
			TranscriptPath:   sysvars.Substitute(step.Terminal.TranscriptPath, rc.Vars),
		}, opts)

	case ActionStore:
		if step.Store == nil {
			return action.Result{Success: false, ErrorMessage: "store step missing store config", Finished: true}
		}
		return action.RunStore(ctx, action.StoreParams{
			Patterns:    sysvars.Substitute(step.Store.Patterns, rc.Vars),
			Sink:        rc.Sink,
			MaxSizeByte: step.Store.MaxSizeByte,
		}, opts)

	case ActionYara:
		if step.Yara == nil {
			return action.Result{Success: false, ErrorMessage: "yara step missing yara config", Finished: true}
		}
		return action.RunYara(ctx, action.YaraParams{
			RulePaths:      substituteAll(step.Yara.RulePaths, rc.Vars),
			Patterns:       sysvars.Substitute(step.Yara.Patterns, rc.Vars),
			StoreOnMatch:   step.Yara.StoreOnMatch,
			Sink:           rc.Sink,
			ResultsCSV:     sysvars.Substitute("${LOOT_DIR}/"+step.Name+"-yara.csv", rc.Vars),
			NumWorkers:     rc.ScanWorkers,
			CustomFilesDir: rc.CustomFilesDir,
			ScanTimeout:    time.Duration(step.Yara.ScanTimeoutSeconds) * time.Second,
		}, opts)

	default:
		return action.Result{Success: false, ErrorMessage: fmt.Sprintf("unknown step type %q", step.Type), Finished: true}
	}
}

func substituteAll(values []string, vars map[string]string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = sysvars.Substitute(v, vars)
	}
	return out
}

// waitForKeypress blocks until a single byte of input is read from
// stdin, matching a workflow step's keypress barrier.
func waitForKeypress() {
	buf := make([]byte, 1)
	_, _ = os.Stdin.Read(buf)
}
