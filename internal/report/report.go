// Package report manages the on-disk lifecycle of a single collection
// run: the report directory, its well-known subdirectories, and the
// timestamped, sanitized naming scheme used to keep concurrent runs from
// a single device from colliding.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	storedFilesDir = "stored_files"
	lootFilesDir   = "loot_files"
	actionOutputDir = "action_output"
	metadataFile   = "metadata.csv"
	archiveFile    = "evidence.zip"
	encryptionFile = "encryption.json"
	tamperLogFile  = "tamper.log"

	timestampLayout = "2006-01-02_15-04-05"
)

// Report represents the directory tree for one collection run. The zero
// value is not usable; construct with New.
type Report struct {
	RunID         uuid.UUID
	RootDir       string
	DeviceName    string
	Name          string
	CreatedAt     time.Time
	ArchiveEnabled bool
	closed        bool
}

// New creates a fresh, uniquely named report directory under lootDir. The
// directory name follows "{device}_{name}_{timestamp}", sanitized
// component-wise, matching the layout evidence from an older run would
// already carry on disk. It creates stored_files, loot_files (for
// files an action produces itself, distinguished from stored files so
// they skip MAC-time collection), and action_output (free-form per-step
// output, e.g. binary/command log files) as siblings.
func New(lootDir, deviceName, name string, createdAt time.Time) (*Report, error) {
	dirName := fmt.Sprintf("%s_%s_%s",
		sanitizeDirname(deviceName),
		sanitizeDirname(name),
		createdAt.Format(timestampLayout),
	)

	root := filepath.Join(lootDir, dirName)
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("report: report directory %s already exists", root)
	}
	for _, sub := range []string{storedFilesDir, lootFilesDir, actionOutputDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o750); err != nil {
			return nil, fmt.Errorf("report: create report directory: %w", err)
		}
	}

	return &Report{
		RunID:      uuid.New(),
		RootDir:    root,
		DeviceName: deviceName,
		Name:       name,
		CreatedAt:  createdAt,
	}, nil
}

// StoredFilesDir is where collected evidence files land, content-addressed
// by their path checksum.
func (r *Report) StoredFilesDir() string {
	return filepath.Join(r.RootDir, storedFilesDir)
}

// LootFilesDir is where actions write files they themselves produce
// (extracted artifacts, decoded blobs) rather than evidence collected
// verbatim from the host.
func (r *Report) LootFilesDir() string {
	return filepath.Join(r.RootDir, lootFilesDir)
}

// ActionOutputDir is where a step's own stdout/stderr log lands when it
// is configured to log to a file.
func (r *Report) ActionOutputDir() string {
	return filepath.Join(r.RootDir, actionOutputDir)
}

// MetadataPath is the CSV file recording MAC times and original paths for
// every stored file.
func (r *Report) MetadataPath() string {
	return filepath.Join(r.RootDir, metadataFile)
}

// ArchivePath is the ZIP archive produced at the end of a run, before
// encryption replaces it in place.
func (r *Report) ArchivePath() string {
	return filepath.Join(r.RootDir, archiveFile)
}

// EncryptionSidecarPath is the JSON file recording the wrapped symmetric
// key, IV, and authentication tag for an encrypted archive.
func (r *Report) EncryptionSidecarPath() string {
	return filepath.Join(r.RootDir, encryptionFile)
}

// TamperLogPath is the path of tamper.log inside the report directory.
// No code in this module writes to it.
func (r *Report) TamperLogPath() string {
	return filepath.Join(r.RootDir, tamperLogFile)
}

// Close finalizes the report. It is the Go substitute for the original's
// Drop impl: there is no implicit per-value finalization in Go, so every
// caller that constructs a Report via New must defer Close explicitly.
// Once evidence has been archived, loot_files and action_output are
// scratch space only (their contents already live inside the archive);
// Close removes each one if it ended up empty, so an archived report
// directory doesn't carry two dangling empty folders next to the ZIP
// that actually matters. A non-empty directory is left alone: something
// unexpected is in it, and silently deleting evidence is worse than an
// unswept leftover. Close is idempotent and a no-op unless
// r.ArchiveEnabled is set.
func (r *Report) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if !r.ArchiveEnabled {
		return nil
	}
	for _, dir := range []string{r.LootFilesDir(), r.ActionOutputDir()} {
		_ = os.Remove(dir) // os.Remove only succeeds on an empty directory
	}
	return nil
}
