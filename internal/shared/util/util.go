package util

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath cleans p and converts it to forward slashes. "." becomes "".
func NormalizePath(p string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// RelPath reports target relative to root in slash form, or target itself
// normalized when it is not below root.
func RelPath(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return NormalizePath(target)
	}
	return NormalizePath(rel)
}

// EnsureParentDir creates the directory that will hold file.
func EnsureParentDir(file string) error {
	dir := filepath.Dir(file)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
