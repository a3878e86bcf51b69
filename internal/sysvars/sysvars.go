// Package sysvars resolves the host facts a workflow step needs to
// substitute into its configured paths and arguments: OS, architecture,
// device name, home directory, and the collector's own base and loot
// directories.
package sysvars

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SystemVariables holds the host facts available for ${...} substitution
// in workflow step definitions.
type SystemVariables struct {
	OS                 string
	Arch               string
	IsElevated         bool
	DeviceName         string
	BasePath           string
	UserHome           string
	User               string
	LootDirectory      string
	CustomFilesDirectory string
}

// Detect builds a SystemVariables from the running host. lootDirectory and
// customFilesDirectory come from the resolved report/run configuration,
// since neither can be derived from the host alone.
func Detect(lootDirectory, customFilesDirectory string) (SystemVariables, error) {
	base, err := DetectBasePath()
	if err != nil {
		return SystemVariables{}, fmt.Errorf("sysvars: detect base path: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return SystemVariables{}, fmt.Errorf("sysvars: resolve user home: %w", err)
	}

	device, err := os.Hostname()
	if err != nil {
		device = "unknown-device"
	}

	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	if user == "" {
		user = "unknown-user"
	}

	return SystemVariables{
		OS:                   runtime.GOOS,
		Arch:                 runtime.GOARCH,
		IsElevated:           isElevated(),
		DeviceName:           device,
		BasePath:             base,
		UserHome:             home,
		User:                 user,
		LootDirectory:        lootDirectory,
		CustomFilesDirectory: customFilesDirectory,
	}, nil
}

// AsMap exposes the substitution keys used by workflow step definitions,
// e.g. "${BASE_PATH}" in a step's file pattern or command line.
func (v SystemVariables) AsMap() map[string]string {
	return map[string]string{
		"BASE_PATH":      v.BasePath,
		"DEVICE_NAME":    v.DeviceName,
		"USER_HOME":      v.UserHome,
		"USER_NAME":      v.User,
		"LOOT_DIR":       v.LootDirectory,
		"CUSTOM_FILES_DIR": v.CustomFilesDirectory,
		"OS":             v.OS,
		"ARCH":           v.Arch,
	}
}

// Substitute replaces every "${KEY}" occurrence in s with its value from
// vars (typically SystemVariables.AsMap()). Keys with no match are left
// untouched.
func Substitute(s string, vars map[string]string) string {
	for key, val := range vars {
		s = strings.ReplaceAll(s, "${"+key+"}", val)
	}
	return s
}

// DetectBasePath resolves the directory the running binary lives in,
// peeling off a "bin" directory or a per-OS "bin/{windows,macos,linux}"
// pair the same way the original production-vs-dev-mode detection did.
// Any other directory, including a Go test binary's temp directory, is
// returned as is.
func DetectBasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable symlink: %w", err)
	}

	dir := filepath.Dir(exe)
	parent := filepath.Base(dir)

	switch parent {
	case "bin":
		return filepath.Dir(dir), nil
	case "windows", "macos", "linux":
		grandparent := filepath.Dir(dir)
		if filepath.Base(grandparent) == "bin" {
			return filepath.Dir(grandparent), nil
		}
	}

	// go test binaries run from a generated temp directory; treat that,
	// and the go build debug output directory, as dev mode: base path is
	// wherever the binary happens to be.
	if strings.Contains(dir, "go-build") || parent == "debug" || strings.HasPrefix(filepath.Base(dir), "___") {
		return dir, nil
	}

	return dir, nil
}
