package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PYMETA_[SECTION]_[KEY] (e.g., PYMETA_DB_PATH).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Extract.DecoratorStrategy, "PYMETA_EXTRACT_DECORATOR_STRATEGY")
	setEnvString(&cfg.Extract.ModuleSentinel, "PYMETA_EXTRACT_MODULE_SENTINEL")
	setEnvInt(&cfg.Extract.MaxSourceBytes, "PYMETA_EXTRACT_MAX_SOURCE_BYTES")

	setEnvString(&cfg.Output.Format, "PYMETA_OUTPUT_FORMAT")

	setEnvInt(&cfg.Scan.Workers, "PYMETA_SCAN_WORKERS")

	setEnvDuration(&cfg.Watch.Debounce, "PYMETA_WATCH_DEBOUNCE")

	setEnvBool(&cfg.DB.Enabled, "PYMETA_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "PYMETA_DB_PATH")

	setEnvString(&cfg.Observability.MetricsAddr, "PYMETA_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "PYMETA_OBSERVABILITY_OTLP_ENDPOINT")

	normalize(cfg)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
