//go:build windows

package sysvars

import "golang.org/x/sys/windows"

// isElevated reports whether the collector's process token carries the
// elevated administrator privilege.
func isElevated() bool {
	var token windows.Token
	proc := windows.CurrentProcess()
	if err := windows.OpenProcessToken(proc, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()
	return token.IsElevated()
}
