package config

import (
	"path/filepath"
	"strings"
)

// ResolveRelative anchors a relative value at base; absolute values are kept.
func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
