package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to DefaultConfig when the file does
// not exist and required is false.
func LoadOrDefault(path string, required bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !required && errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return nil, err
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Extract.DecoratorStrategy) == "" {
		cfg.Extract.DecoratorStrategy = "structural-fallback"
	}
	if strings.TrimSpace(cfg.Extract.ModuleSentinel) == "" {
		cfg.Extract.ModuleSentinel = "__main__"
	}

	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = FormatJSON
	}
	if cfg.Output.Indent <= 0 {
		cfg.Output.Indent = 2
	}

	if len(cfg.Scan.Include) == 0 {
		cfg.Scan.Include = []string{"*.py"}
	}
	if cfg.Scan.ExcludeDirs == nil {
		cfg.Scan.ExcludeDirs = []string{".git", "__pycache__", ".venv", "venv", "node_modules"}
	}
	if cfg.Scan.Workers <= 0 {
		cfg.Scan.Workers = 4
	}
	if cfg.Scan.CacheSize <= 0 {
		cfg.Scan.CacheSize = 512
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RateLimit == 0 {
		cfg.Watch.RateLimit = 20
	}
	if cfg.Watch.Burst == 0 {
		cfg.Watch.Burst = 10
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "data/pymeta.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "pymeta"
	}
}

func normalize(cfg *Config) {
	cfg.Extract.DecoratorStrategy = strings.ToLower(strings.TrimSpace(cfg.Extract.DecoratorStrategy))
	cfg.Extract.ModuleSentinel = strings.TrimSpace(cfg.Extract.ModuleSentinel)
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	cfg.DB.Path = strings.TrimSpace(cfg.DB.Path)
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}
