package workflow

import "fmt"

// ValidationResult carries the outcome of Validate: fatal errors that
// block the run, warnings about conflicts that were automatically
// repaired, and the repaired definition itself (a copy; the input is
// never mutated).
type ValidationResult struct {
	Fatal    []string
	Warnings []string
	Repaired Definition
}

// OK reports whether the workflow can run: no fatal errors were found.
func (r ValidationResult) OK() bool {
	return len(r.Fatal) == 0
}

// Validate checks a workflow definition for internally inconsistent
// configuration, repairing what can be repaired automatically and
// collecting fatal errors for what can't.
//
// A handful of the repairs below preserve asymmetries carried over from
// the engine this was modeled on, not overlooked while porting:
//
//   - the compression repair tests encryption.enabled, not
//     archive.enabled, even though compression is nominally an archive
//     setting: compression is forced off whenever encryption is off,
//     regardless of what archive.enabled says.
//   - a parallel terminal step without separate_window disables
//     parallel rather than forcing separate_window on, because an
//     interactive terminal sharing the controlling window cannot run in
//     the background.
//   - an archive disabled with encryption enabled repairs by turning
//     archiving back on rather than turning encryption off, to honor
//     the operator's evident intent (they asked for encryption).
//   - on_error=goto targets are deliberately never checked ahead of
//     time here; an unreachable goto is a runtime failure (see
//     workflow.dispatchOnError), not a validation-time one.
func Validate(def Definition) ValidationResult {
	res := ValidationResult{Repaired: def}
	res.Repaired.Steps = append([]Step(nil), def.Steps...)
	res.Repaired.Actions = append([]Action(nil), def.Actions...)

	if res.Repaired.Properties.Title == "" {
		res.Fatal = append(res.Fatal, "properties.title must not be empty")
	}
	if res.Repaired.Properties.Version == "" {
		res.Fatal = append(res.Fatal, "properties.version must not be empty")
	}

	if len(res.Repaired.Steps) == 0 {
		res.Fatal = append(res.Fatal, "workflow has no steps")
	}

	actionNames := make(map[string]bool, len(res.Repaired.Actions))
	for _, a := range res.Repaired.Actions {
		if actionNames[a.Name] {
			res.Fatal = append(res.Fatal, fmt.Sprintf("duplicate action name %q", a.Name))
		}
		actionNames[a.Name] = true
	}

	if res.Repaired.Encryption.Enabled && !res.Repaired.Archive.Enabled {
		res.Repaired.Archive.Enabled = true
		res.Warnings = append(res.Warnings,
			"encryption is enabled but archive is disabled; archive has been re-enabled, since encryption has nothing to encrypt without it")
	}

	if res.Repaired.Encryption.Enabled && res.Repaired.Encryption.PublicKeyPath == "" {
		res.Fatal = append(res.Fatal,
			"encryption is enabled but no public_key_path was configured")
	}

	if !res.Repaired.Encryption.Enabled && !res.Repaired.Archive.CompressionDisabled {
		res.Repaired.Archive.CompressionDisabled = true
		res.Warnings = append(res.Warnings,
			"compression has been disabled because encryption is off")
	}

	for i := range res.Repaired.Steps {
		step := &res.Repaired.Steps[i]

		// Repairs below write through these pointers; give the repaired
		// step its own copies so the input definition is left untouched.
		if step.Binary != nil {
			b := *step.Binary
			step.Binary = &b
		}
		if step.Command != nil {
			c := *step.Command
			step.Command = &c
		}
		if step.Terminal != nil {
			t := *step.Terminal
			step.Terminal = &t
		}

		if step.Uses != "" && !actionNames[step.Uses] {
			res.Fatal = append(res.Fatal, fmt.Sprintf(
				"step %q: uses unknown action %q", step.Name, step.Uses))
		}

		if step.Parallel && step.Type != ActionBinary && step.Type != ActionCommand && step.Type != ActionTerminal {
			step.Parallel = false
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"step %q: only binary, command, and terminal steps may run in parallel; parallel has been disabled",
				step.Name))
		}

		if step.Parallel && step.Type == ActionBinary && step.Binary != nil && step.Binary.LogToFile == "" {
			step.Binary.LogToFile = "${LOOT_DIR}/" + step.Name + ".log"
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"step %q: parallel steps must log to a file rather than the console; log_to_file has been set to %q",
				step.Name, step.Binary.LogToFile))
		}
		if step.Parallel && step.Type == ActionCommand && step.Command != nil && step.Command.LogToFile == "" {
			step.Command.LogToFile = "${LOOT_DIR}/" + step.Name + ".log"
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"step %q: parallel steps must log to a file rather than the console; log_to_file has been set to %q",
				step.Name, step.Command.LogToFile))
		}

		if step.Parallel && step.OnError.Action != OnErrorContinue {
			step.OnError = OnError{Action: OnErrorContinue}
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"step %q: a parallel step's on_error must be continue; it has been forced to continue",
				step.Name))
		}

		if step.Parallel && step.WaitForKeypress {
			step.WaitForKeypress = false
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"step %q: a parallel step cannot wait for a keypress; wait_for_keypress has been disabled",
				step.Name))
		}

		if step.TimeoutSeconds > 0 && step.Type != ActionBinary && step.Type != ActionCommand {
			step.TimeoutSeconds = 0
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"step %q: only binary and command steps may have a timeout; timeout_seconds has been reset to 0",
				step.Name))
		}

		if step.Type == ActionTerminal && step.Terminal != nil {
			t := step.Terminal
			if !t.Wait && !t.SeparateWindow {
				t.SeparateWindow = true
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"step %q: a terminal step that doesn't wait must run in a separate window; separate_window has been enabled",
					step.Name))
			}
			if t.EnableTranscript && !t.Wait {
				t.Wait = true
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"step %q: a transcript can only be captured if the step waits for the terminal to exit; wait has been enabled",
					step.Name))
			}
			if step.Parallel && !t.SeparateWindow {
				step.Parallel = false
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"step %q: a terminal step without separate_window cannot run in parallel; parallel has been disabled",
					step.Name))
			}
		}

		if step.OnError.Action == OnErrorGoto && step.OnError.Goto == "" {
			res.Fatal = append(res.Fatal, fmt.Sprintf(
				"step %q: on_error action is goto but no goto target was given", step.Name))
		}

		if step.Type == ActionYara && (step.Yara == nil || len(step.Yara.RulePaths) == 0) {
			res.Fatal = append(res.Fatal, fmt.Sprintf(
				"step %q: yara step has no rule_paths configured", step.Name))
		}
	}

	if res.Repaired.Scan.NumThreads < 0 {
		res.Fatal = append(res.Fatal, "scan.num_threads cannot be negative")
	}

	names := make(map[string]bool, len(res.Repaired.Steps))
	for _, step := range res.Repaired.Steps {
		if step.Name == "" {
			res.Fatal = append(res.Fatal, "every step must have a non-empty name")
			continue
		}
		if names[step.Name] {
			res.Fatal = append(res.Fatal, fmt.Sprintf("duplicate step name %q", step.Name))
		}
		names[step.Name] = true
	}

	return res
}
