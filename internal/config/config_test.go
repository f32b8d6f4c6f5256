package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for configuration:
// - Default returns a valid config
// - Validate rejects bad providers, dimensions, chunking, and watch timings
// - LoadConfigFromDir with no config file yields the defaults
// - A config file under .docdex overrides individual values
// - DOCDEX_ environment variables override the file
// - An invalid file value fails validation at load time

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(Default()))
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "quantum" }, ErrInvalidProvider},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, ErrInvalidDimensions},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }, ErrInvalidChunkSize},
		{"overlap at size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }, ErrInvalidOverlap},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }, ErrInvalidOverlap},
		{"no extensions", func(c *Config) { c.Paths.Extensions = nil }, ErrNoExtensions},
		{"extension without dot", func(c *Config) { c.Paths.Extensions = []string{"md"} }, ErrInvalidExtension},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = 0 }, ErrInvalidWatchSettings},
		{"move window under grace", func(c *Config) { c.Watch.MoveWindow = c.Watch.GraceDelay / 2 }, ErrInvalidWatchSettings},
		{"debounce under grace", func(c *Config) { c.Watch.Debounce = c.Watch.GraceDelay }, ErrInvalidWatchSettings},
		{"negative retries", func(c *Config) { c.Watch.MaxRetries = -1 }, ErrInvalidWatchSettings},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigFromDir_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromDir(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 5*time.Second, cfg.Watch.Debounce)
}

func TestLoadConfigFromDir_FileOverrides(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".docdex"), 0755))
	content := "chunking:\n  size: 800\n  overlap: 50\nwatch:\n  debounce: 3s\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".docdex", "config.yml"), []byte(content), 0644))

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 3*time.Second, cfg.Watch.Debounce)
	// Untouched values keep their defaults.
	assert.Equal(t, "hash", cfg.Embedding.Provider)
}

func TestLoadConfigFromDir_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".docdex"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".docdex", "config.yml"), []byte("chunking:\n  size: 800\n"), 0644))

	t.Setenv("DOCDEX_CHUNKING_SIZE", "600")

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Chunking.Size)
}

func TestLoadConfigFromDir_InvalidValueFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".docdex"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".docdex", "config.yml"), []byte("embedding:\n  provider: quantum\n"), 0644))

	_, err := LoadConfigFromDir(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProvider)
}
