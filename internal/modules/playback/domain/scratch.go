package domain

import (
	"path/filepath"
	"strings"
)

// IsScratchPath reports whether path lies inside scratchDir.
// Only such files are disposable once their request ends.
func IsScratchPath(path, scratchDir string) bool {
	if path == "" || scratchDir == "" {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(scratchDir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
