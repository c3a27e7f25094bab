package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Validate reports every problem in cfg joined into one error.
func Validate(cfg *Config) error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validateExtract,
		validateOutput,
		validateScan,
		validateWatch,
		validateDatabase,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateExtract(cfg *Config) error {
	switch cfg.Extract.DecoratorStrategy {
	case "structural-fallback", "bare-name-only":
	default:
		return fmt.Errorf("extract.decorator_strategy must be one of: structural-fallback, bare-name-only, got %q", cfg.Extract.DecoratorStrategy)
	}
	if strings.Contains(cfg.Extract.ModuleSentinel, ".") {
		return fmt.Errorf("extract.module_sentinel %q must not contain '.'", cfg.Extract.ModuleSentinel)
	}
	if cfg.Extract.MaxSourceBytes < 0 {
		return fmt.Errorf("extract.max_source_bytes must be >= 0, got %d", cfg.Extract.MaxSourceBytes)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatJSON, FormatYAML, FormatTSV:
	default:
		return fmt.Errorf("output.format must be one of: json, yaml, tsv, got %q", cfg.Output.Format)
	}
	if cfg.Output.Indent < 1 || cfg.Output.Indent > 8 {
		return fmt.Errorf("output.indent must be between 1 and 8, got %d", cfg.Output.Indent)
	}
	return nil
}

func validateScan(cfg *Config) error {
	for i, pattern := range cfg.Scan.Include {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("scan.include[%d] %q: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Scan.ExcludeFiles {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("scan.exclude_files[%d] %q: %w", i, pattern, err)
		}
	}
	for i, dir := range cfg.Scan.ExcludeDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("scan.exclude_dirs[%d] must not be empty", i)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0, got %s", cfg.Watch.Debounce)
	}
	if cfg.Watch.RateLimit < 0 {
		return fmt.Errorf("watch.rate_limit must be >= 0, got %g", cfg.Watch.RateLimit)
	}
	if cfg.Watch.Burst < 1 {
		return fmt.Errorf("watch.burst must be >= 1, got %d", cfg.Watch.Burst)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && cfg.DB.Path == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled is set")
	}
	return nil
}
