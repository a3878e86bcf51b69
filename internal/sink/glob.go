package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandPattern resolves a single glob pattern (which may use doublestar
// "**" recursion) against the filesystem, returning regular files only.
// Patterns are rooted: a relative pattern is resolved against the
// filesystem root of the path itself, matching doublestar.Glob's
// requirement that its FS argument be rooted at "/".
func ExpandPattern(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)
	root := "/"
	rel := strings.TrimPrefix(pattern, "/")

	matches, err := doublestar.Glob(os.DirFS(root), rel)
	if err != nil {
		return nil, fmt.Errorf("sink: expand pattern %q: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		full := filepath.Join(root, m)
		info, err := os.Lstat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, full)
	}
	return files, nil
}

// ExpandPatterns resolves newline-separated glob patterns, matching the
// original store action's one-pattern-per-line configuration, and
// dedupes the result.
func ExpandPatterns(patterns string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(patterns, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files, err := ExpandPattern(line)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}
