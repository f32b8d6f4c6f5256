package config

import "time"

// Config represents the complete docdex configuration.
// It can be loaded from .docdex/config.yml with environment variable overrides.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Chunking  ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"`     // "hash" or "openai"
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"` // embedding vector dimensions
}

// PathsConfig defines which files are eligible for indexing.
// Extensions is a single allow-list honored identically by batch ingestion
// and the watcher, so the two can never disagree on what is indexable.
type PathsConfig struct {
	Extensions []string `yaml:"extensions" mapstructure:"extensions"` // eligible file extensions (with dot)
	Exclude    []string `yaml:"exclude" mapstructure:"exclude"`       // glob patterns to exclude
}

// ChunkingConfig defines how extracted text is split.
type ChunkingConfig struct {
	Size    int `yaml:"size" mapstructure:"size"`       // max characters per chunk
	Overlap int `yaml:"overlap" mapstructure:"overlap"` // character overlap between chunks
}

// StoreConfig defines where chunks and the fingerprint cache live.
type StoreConfig struct {
	DBPath    string `yaml:"db_path" mapstructure:"db_path"`       // chunk database file
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"` // fingerprint cache file
}

// WatchConfig tunes the file watcher's reconciliation behavior.
type WatchConfig struct {
	Debounce       time.Duration `yaml:"debounce" mapstructure:"debounce"`               // quiet period before reprocessing
	GraceDelay     time.Duration `yaml:"grace_delay" mapstructure:"grace_delay"`         // delay before acting on deletions
	MoveWindow     time.Duration `yaml:"move_window" mapstructure:"move_window"`         // window to correlate delete/create as a move
	RescanInterval time.Duration `yaml:"rescan_interval" mapstructure:"rescan_interval"` // periodic full-tree rescan period
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`         // retry count for store mutations
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	Verbose        bool          `yaml:"verbose" mapstructure:"verbose"`
	Debug          bool          `yaml:"debug" mapstructure:"debug"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 384,
		},
		Paths: PathsConfig{
			Extensions: []string{
				".md", ".pdf", ".txt", ".rtf", ".docx", ".html", ".htm",
				".json", ".xml", ".yaml", ".yml", ".rst", ".tex",
				".log", ".csv", ".tsv",
			},
			Exclude: []string{
				".git/**",
				".docdex/**",
				"node_modules/**",
				"code/**",
			},
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 100,
		},
		Store: StoreConfig{
			DBPath:    ".docdex/chunks.db",
			CachePath: ".docdex/fingerprints.json",
		},
		Watch: WatchConfig{
			Debounce:       5 * time.Second,
			GraceDelay:     2 * time.Second,
			MoveWindow:     10 * time.Second,
			RescanInterval: 15 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
		},
	}
}

// ExtensionSet returns the eligible extensions as a lookup map.
func (c *Config) ExtensionSet() map[string]bool {
	set := make(map[string]bool, len(c.Paths.Extensions))
	for _, ext := range c.Paths.Extensions {
		set[ext] = true
	}
	return set
}
