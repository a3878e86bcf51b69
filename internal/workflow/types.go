// Package workflow defines the YAML-configured collection workflow
// schema, validates it against the engine's own constraints (repairing
// what it safely can and failing fast on what it can't), and runs it
// step by step.
package workflow

import (
	ircrypto "github.com/duskline/irkit/internal/crypto"
)

// ActionType names which of the five step kinds a Step carries
// configuration for.
type ActionType string

const (
	ActionBinary   ActionType = "binary"
	ActionCommand  ActionType = "command"
	ActionStore    ActionType = "store"
	ActionYara     ActionType = "yara"
	ActionTerminal ActionType = "terminal"
)

// OnErrorAction names what the engine does when a step fails.
type OnErrorAction string

const (
	OnErrorContinue OnErrorAction = "continue"
	OnErrorAbort    OnErrorAction = "abort"
	OnErrorGoto     OnErrorAction = "goto"
)

// OnError configures a step's failure handling. Goto is only consulted
// when Action is OnErrorGoto, and names the step to resume at by its
// Name field. Cycles are not detected: a workflow author can construct
// an infinite goto loop, and the engine will run it forever, matching
// the original's behavior.
type OnError struct {
	Action OnErrorAction `yaml:"action"`
	Goto   string        `yaml:"goto,omitempty"`
}

// BinaryConfig runs a bundled executable.
type BinaryConfig struct {
	Path       string   `yaml:"path"`
	Args       []string `yaml:"args,omitempty"`
	LogToFile  string   `yaml:"log_to_file,omitempty"`
	PipeOutput bool     `yaml:"pipe_output,omitempty"`
}

// CommandConfig runs a shell command line.
type CommandConfig struct {
	Command    string `yaml:"command"`
	Cwd        string `yaml:"cwd,omitempty"`
	LogToFile  string `yaml:"log_to_file,omitempty"`
	PipeOutput bool   `yaml:"pipe_output,omitempty"`
}

// StoreConfig collects files matching newline-separated glob patterns
// into the evidence sink.
type StoreConfig struct {
	Patterns    string `yaml:"patterns"`
	MaxSizeByte int64  `yaml:"max_size_bytes,omitempty"`
}

// YaraConfig scans files matching patterns against a set of compiled
// YARA rule files, storing matches into the evidence sink.
type YaraConfig struct {
	RulePaths          []string `yaml:"rule_paths"`
	Patterns           string   `yaml:"patterns"`
	StoreOnMatch       bool     `yaml:"store_on_match,omitempty"`
	ScanTimeoutSeconds uint32   `yaml:"scan_timeout_seconds,omitempty"`
}

// TerminalConfig launches an interactive command in a terminal emulator.
type TerminalConfig struct {
	Command          string `yaml:"command"`
	SeparateWindow   bool   `yaml:"separate_window,omitempty"`
	// Wait controls whether the engine tracks the launched terminal's
	// child process at all. When false, the step reports success the
	// instant the terminal is launched and the child is never awaited.
	Wait             bool   `yaml:"wait,omitempty"`
	EnableTranscript bool   `yaml:"enable_transcript,omitempty"`
	TranscriptPath   string `yaml:"transcript_path,omitempty"`
}

// ActionDef is one named entry in a workflow's actions registry: a
// reusable action configuration that steps reference by name (via
// Step.Uses) instead of repeating it inline.
type ActionDef struct {
	Type     ActionType      `yaml:"type"`
	Binary   *BinaryConfig   `yaml:"binary,omitempty"`
	Command  *CommandConfig  `yaml:"command,omitempty"`
	Store    *StoreConfig    `yaml:"store,omitempty"`
	Yara     *YaraConfig     `yaml:"yara,omitempty"`
	Terminal *TerminalConfig `yaml:"terminal,omitempty"`
}

// Action is a named registry entry; Name must be unique across the
// workflow's actions list.
type Action struct {
	Name      string `yaml:"name"`
	ActionDef `yaml:",inline"`
}

// Step is one entry in a workflow's ordered step list. A step either
// carries its action configuration inline (Binary, Command, ...) or
// names a registry entry via Uses; engine.resolveStep merges the two,
// inline fields winning over the named action's.
type Step struct {
	Name            string          `yaml:"name"`
	Type            ActionType      `yaml:"type"`
	Uses            string          `yaml:"uses,omitempty"`
	Binary          *BinaryConfig   `yaml:"binary,omitempty"`
	Command         *CommandConfig  `yaml:"command,omitempty"`
	Store           *StoreConfig    `yaml:"store,omitempty"`
	Yara            *YaraConfig     `yaml:"yara,omitempty"`
	Terminal        *TerminalConfig `yaml:"terminal,omitempty"`
	TimeoutSeconds  uint32          `yaml:"timeout_seconds,omitempty"`
	Parallel        bool            `yaml:"parallel,omitempty"`
	OnError         OnError         `yaml:"on_error,omitempty"`
	WaitForKeypress bool            `yaml:"wait_for_keypress,omitempty"`
}

// PropertiesConfig carries the workflow's own identifying metadata. Both
// fields are required by the C7 validator.
type PropertiesConfig struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// LaunchConditionsConfig gates whether the collector should even attempt
// this workflow on the current host, checked once before the first step
// runs. Every configured condition must pass; an empty
// LaunchConditionsConfig always passes.
type LaunchConditionsConfig struct {
	OS               []string `yaml:"os,omitempty"`
	Arch             []string `yaml:"arch,omitempty"`
	RequireElevation bool     `yaml:"require_elevation,omitempty"`
	CustomCommand    string   `yaml:"custom_command,omitempty"`
}

// ReportingConfig names the collection run, used to build the report
// directory name alongside the device name and timestamp.
type ReportingConfig struct {
	Name string `yaml:"name"`
}

// ArchiveConfig controls whether collected evidence is bundled into a
// single ZIP at the end of a run, and whether that ZIP's entries are
// compressed.
type ArchiveConfig struct {
	Enabled            bool `yaml:"enabled"`
	CompressionDisabled bool `yaml:"compression_disabled,omitempty"`
}

// EncryptionConfig controls whether the final archive is encrypted, and
// with which algorithm and public key.
type EncryptionConfig struct {
	Enabled       bool              `yaml:"enabled"`
	PublicKeyPath string            `yaml:"public_key_path,omitempty"`
	Algorithm     ircrypto.Algorithm `yaml:"algorithm,omitempty"`
}

// ScanConfig controls the YARA scanning worker pool size.
type ScanConfig struct {
	NumThreads int `yaml:"num_threads,omitempty"`
}

// Definition is the full workflow.yaml schema.
type Definition struct {
	Properties       PropertiesConfig        `yaml:"properties"`
	LaunchConditions LaunchConditionsConfig  `yaml:"launch_conditions,omitempty"`
	Reporting        ReportingConfig         `yaml:"reporting"`
	Archive          ArchiveConfig           `yaml:"archive"`
	Encryption       EncryptionConfig        `yaml:"encryption"`
	Scan             ScanConfig              `yaml:"scan"`
	Actions          []Action                `yaml:"actions,omitempty"`
	Steps            []Step                  `yaml:"steps"`
}
