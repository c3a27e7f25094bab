package config

import "time"

type Config struct {
	Version       int           `toml:"version"`
	Extract       Extract       `toml:"extract"`
	Output        Output        `toml:"output"`
	Scan          Scan          `toml:"scan"`
	Watch         Watch         `toml:"watch"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
}

type Extract struct {
	// DecoratorStrategy is "structural-fallback" or "bare-name-only".
	DecoratorStrategy string `toml:"decorator_strategy"`
	ModuleSentinel    string `toml:"module_sentinel"`
	// MaxSourceBytes rejects larger inputs; 0 means unlimited.
	MaxSourceBytes int `toml:"max_source_bytes"`
}

type Output struct {
	Format string `toml:"format"`
	// Indent is the JSON/YAML indentation width; Compact disables it for JSON.
	Indent  int  `toml:"indent"`
	Compact bool `toml:"compact"`
	Summary bool `toml:"summary"`
}

type Scan struct {
	Include      []string `toml:"include"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
	Workers      int      `toml:"workers"`
	CacheSize    int      `toml:"cache_size"`
}

type Watch struct {
	Debounce  time.Duration `toml:"debounce"`
	RateLimit float64       `toml:"rate_limit"`
	Burst     int           `toml:"burst"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	// FormatTSV lists call edges only.
	FormatTSV = "tsv"
)

// DefaultConfig is the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
