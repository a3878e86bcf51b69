//go:build !windows

package sysvars

import "os"

// isElevated reports whether the collector is running as root.
func isElevated() bool {
	return os.Geteuid() == 0
}
