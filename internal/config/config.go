package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danmuck/xwire/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

// Largest request without BIG-REQUESTS: 65535 four-byte units.
const MaxRequestBytesLimit = 65535 * 4

type Config struct {
	SchemaPaths []string      `toml:"schema_paths"`
	IncludeCore bool          `toml:"include_core"`
	Log         LogConfig     `toml:"log"`
	Limits      LimitsConfig  `toml:"limits"`
	Metrics     MetricsConfig `toml:"metrics"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

type LimitsConfig struct {
	MaxRequestBytes int `toml:"max_request_bytes"`
	MaxReplyBytes   int `toml:"max_reply_bytes"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

func Default() Config {
	return Config{
		IncludeCore: true,
		Log:         LogConfig{Level: "info"},
		Limits: LimitsConfig{
			MaxRequestBytes: MaxRequestBytesLimit,
			MaxReplyBytes:   16 << 20,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads path over the defaults. Relative schema paths are resolved
// against the directory holding the config file.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	base := filepath.Dir(path)
	for i, p := range cfg.SchemaPaths {
		if !filepath.IsAbs(p) {
			cfg.SchemaPaths[i] = filepath.Join(base, p)
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if !cfg.IncludeCore && len(cfg.SchemaPaths) == 0 {
		return fmt.Errorf("no schema: set schema_paths or include_core")
	}
	for i, p := range cfg.SchemaPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("schema_paths[%d] is empty", i)
		}
	}
	if err := ValidateLog(cfg.Log); err != nil {
		return fmt.Errorf("log invalid: %w", err)
	}
	if err := ValidateLimits(cfg.Limits); err != nil {
		return fmt.Errorf("limits invalid: %w", err)
	}
	return nil
}

func ValidateLog(cfg LogConfig) error {
	if strings.TrimSpace(cfg.Level) == "" {
		return nil
	}
	if _, ok := logging.ParseLevel(cfg.Level); !ok {
		return fmt.Errorf("unknown level %q", cfg.Level)
	}
	return nil
}

func ValidateLimits(cfg LimitsConfig) error {
	if cfg.MaxRequestBytes < 4 || cfg.MaxRequestBytes > MaxRequestBytesLimit {
		return fmt.Errorf("max_request_bytes must be within 4..%d", MaxRequestBytesLimit)
	}
	if cfg.MaxReplyBytes < 32 {
		return fmt.Errorf("max_reply_bytes must be at least 32")
	}
	return nil
}

// SchemaFiles expands the schema path globs into a sorted, de-duplicated
// file list. A pattern matching nothing is an error.
func (c Config) SchemaFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range c.SchemaPaths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("schema path %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("schema path %q matches no files", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
