package report

import "strings"

// illegalFilenameChars mirrors the Windows-reserved path characters the
// original sanitizer stripped (it always ran in "windows" mode regardless
// of host OS, since reports are frequently copied onto Windows media).
const illegalFilenameChars = `<>:"/\|?*`

// sanitizeDirname strips characters illegal in a Windows path component
// and control characters, trims trailing dots and spaces, and replaces
// each remaining space with an underscore (runs are not collapsed). It does
// not reject empty results; callers that need a non-empty directory
// component should check for that separately.
func sanitizeDirname(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(illegalFilenameChars, r) {
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	stripped := b.String()
	stripped = strings.TrimRight(stripped, ". ")
	return strings.ReplaceAll(stripped, " ", "_")
}
