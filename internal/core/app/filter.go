package app

import (
	"fmt"
	"path/filepath"

	"pymeta/internal/core/config"

	"github.com/gobwas/glob"
)

// Filter applies the [scan] include and exclude globs to base names.
type Filter struct {
	include      []glob.Glob
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func NewFilter(cfg config.Scan) (*Filter, error) {
	include, err := compileGlobs(cfg.Include, "include")
	if err != nil {
		return nil, err
	}
	excludeDirs, err := compileGlobs(cfg.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	excludeFiles, err := compileGlobs(cfg.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}
	return &Filter{include: include, excludeDirs: excludeDirs, excludeFiles: excludeFiles}, nil
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (f *Filter) SkipDir(path string) bool {
	return matchAny(f.excludeDirs, filepath.Base(path))
}

func (f *Filter) IncludeFile(path string) bool {
	base := filepath.Base(path)
	return matchAny(f.include, base) && !matchAny(f.excludeFiles, base)
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
