package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Cache providers
const (
	ProviderMemory = "memory"
	ProviderSQLite = "sqlite"
)

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the complete tool configuration
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	GitHub     GitHubConfig     `yaml:"github"`
	Downloads  DownloadsConfig  `yaml:"downloads"`
	Cache      CacheConfig      `yaml:"cache"`
	TTL        TTLConfig        `yaml:"ttl"`
	Log        LogConfig        `yaml:"log"`
}

// RepositoryConfig identifies the GitHub repository whose stats are shown
type RepositoryConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// FullName returns owner/name
func (r RepositoryConfig) FullName() string {
	return r.Owner + "/" + r.Name
}

// GitHubConfig configures the GitHub API client
type GitHubConfig struct {
	Token            string   `yaml:"token"`
	BaseURL          string   `yaml:"base_url"`
	MaxRateLimitWait Duration `yaml:"max_rate_limit_wait"`
}

// DownloadsConfig configures the download badge client
type DownloadsConfig struct {
	BaseURL string   `yaml:"base_url"`
	Project string   `yaml:"project"`
	Timeout Duration `yaml:"timeout"`
}

// CacheConfig selects and configures the cache substrate
type CacheConfig struct {
	Provider   string   `yaml:"provider"`
	Path       string   `yaml:"path"`
	DefaultTTL Duration `yaml:"default_ttl"`
}

// TTLConfig holds the per-resource cache lifetimes
type TTLConfig struct {
	Stars        Duration `yaml:"stars"`
	Contributors Duration `yaml:"contributors"`
	Downloads    Duration `yaml:"downloads"`
}

// LogConfig configures logging
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Duration is a time.Duration written as a Go duration string ("90s", "3m")
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", value.Line, err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DurationValue returns the value as a time.Duration
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, applies defaults and the environment,
// and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		ApplyEnv(cfg)
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", path, err)
	}

	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML configuration and fills in defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// ApplyEnv fills values that may come from the environment
func ApplyEnv(cfg *Config) {
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Repository.Owner == "" {
		cfg.Repository.Owner = "N4S4"
	}
	if cfg.Repository.Name == "" {
		cfg.Repository.Name = "synology-api"
	}
	if cfg.GitHub.MaxRateLimitWait == 0 {
		cfg.GitHub.MaxRateLimitWait = Duration(time.Minute)
	}
	if cfg.Downloads.BaseURL == "" {
		cfg.Downloads.BaseURL = "https://static.pepy.tech/badge"
	}
	if cfg.Downloads.Project == "" {
		cfg.Downloads.Project = "synology-api"
	}
	if cfg.Downloads.Timeout == 0 {
		cfg.Downloads.Timeout = Duration(10 * time.Second)
	}
	if cfg.Cache.Provider == "" {
		cfg.Cache.Provider = ProviderSQLite
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = ".site-stats-cache.db"
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = Duration(180 * time.Second)
	}
	if cfg.TTL.Stars == 0 {
		cfg.TTL.Stars = Duration(time.Minute)
	}
	if cfg.TTL.Contributors == 0 {
		cfg.TTL.Contributors = Duration(time.Minute)
	}
	if cfg.TTL.Downloads == 0 {
		cfg.TTL.Downloads = Duration(3 * time.Minute)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = FormatText
	}
	if cfg.Log.MaxSize == 0 {
		cfg.Log.MaxSize = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
}

// Validate checks the configuration and returns the first FieldError found
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Repository.Owner) == "" {
		return newFieldError("repository.owner", "is required")
	}
	if strings.TrimSpace(c.Repository.Name) == "" {
		return newFieldError("repository.name", "is required")
	}

	switch c.Cache.Provider {
	case ProviderMemory:
	case ProviderSQLite:
		if strings.TrimSpace(c.Cache.Path) == "" {
			return newFieldError("cache.path", "is required for the sqlite provider")
		}
	default:
		return newFieldError("cache.provider", fmt.Sprintf("unsupported provider %q (use %s or %s)", c.Cache.Provider, ProviderMemory, ProviderSQLite))
	}

	durations := []struct {
		field string
		value Duration
	}{
		{"github.max_rate_limit_wait", c.GitHub.MaxRateLimitWait},
		{"downloads.timeout", c.Downloads.Timeout},
		{"cache.default_ttl", c.Cache.DefaultTTL},
		{"ttl.stars", c.TTL.Stars},
		{"ttl.contributors", c.TTL.Contributors},
		{"ttl.downloads", c.TTL.Downloads},
	}
	for _, d := range durations {
		if d.value < 0 {
			return newFieldError(d.field, "must not be negative")
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return newFieldError("log.level", err.Error())
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		return newFieldError("log.format", fmt.Sprintf("unsupported format %q (use %s or %s)", c.Log.Format, FormatText, FormatJSON))
	}

	return nil
}
