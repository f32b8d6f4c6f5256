package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project root.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (DOCDEX_*)
// 2. Config file (.docdex/config.yml or .docdex/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".docdex")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("DOCDEX")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., DOCDEX_WATCH_DEBOUNCE)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("embedding.provider")
	v.BindEnv("embedding.dimensions")
	v.BindEnv("chunking.size")
	v.BindEnv("chunking.overlap")
	v.BindEnv("store.db_path")
	v.BindEnv("store.cache_path")
	v.BindEnv("watch.debounce")
	v.BindEnv("watch.grace_delay")
	v.BindEnv("watch.move_window")
	v.BindEnv("watch.rescan_interval")
	v.BindEnv("watch.max_retries")
	v.BindEnv("watch.retry_base_delay")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("embedding.provider", defaults.Embedding.Provider)
	v.SetDefault("embedding.dimensions", defaults.Embedding.Dimensions)

	v.SetDefault("paths.extensions", defaults.Paths.Extensions)
	v.SetDefault("paths.exclude", defaults.Paths.Exclude)

	v.SetDefault("chunking.size", defaults.Chunking.Size)
	v.SetDefault("chunking.overlap", defaults.Chunking.Overlap)

	v.SetDefault("store.db_path", defaults.Store.DBPath)
	v.SetDefault("store.cache_path", defaults.Store.CachePath)

	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("watch.grace_delay", defaults.Watch.GraceDelay)
	v.SetDefault("watch.move_window", defaults.Watch.MoveWindow)
	v.SetDefault("watch.rescan_interval", defaults.Watch.RescanInterval)
	v.SetDefault("watch.max_retries", defaults.Watch.MaxRetries)
	v.SetDefault("watch.retry_base_delay", defaults.Watch.RetryBaseDelay)
}

// LoadConfig loads configuration using the current working directory as root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific project root.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
