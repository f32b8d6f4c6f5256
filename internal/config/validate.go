package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProvider indicates an unsupported embedding provider
	ErrInvalidProvider = errors.New("invalid embedding provider")

	// ErrInvalidDimensions indicates invalid embedding dimensions
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrInvalidChunkSize indicates invalid chunk size configuration
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap indicates invalid overlap configuration
	ErrInvalidOverlap = errors.New("invalid overlap")

	// ErrNoExtensions indicates an empty eligible-extension list
	ErrNoExtensions = errors.New("no eligible extensions configured")

	// ErrInvalidExtension indicates a malformed extension entry
	ErrInvalidExtension = errors.New("invalid extension")

	// ErrInvalidWatchSettings indicates invalid watcher timing configuration
	ErrInvalidWatchSettings = errors.New("invalid watch settings")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateEmbedding(&cfg.Embedding); err != nil {
		errs = append(errs, err)
	}
	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}
	if err := validateChunking(&cfg.Chunking); err != nil {
		errs = append(errs, err)
	}
	if err := validateWatch(&cfg.Watch); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateEmbedding(cfg *EmbeddingConfig) error {
	switch cfg.Provider {
	case "hash", "openai":
	default:
		return fmt.Errorf("%w: %q (must be \"hash\" or \"openai\")", ErrInvalidProvider, cfg.Provider)
	}

	if cfg.Dimensions <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidDimensions, cfg.Dimensions)
	}
	return nil
}

func validatePaths(cfg *PathsConfig) error {
	if len(cfg.Extensions) == 0 {
		return ErrNoExtensions
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%w: %q (must start with a dot)", ErrInvalidExtension, ext)
		}
	}
	return nil
}

func validateChunking(cfg *ChunkingConfig) error {
	if cfg.Size <= 0 {
		return fmt.Errorf("%w: size %d (must be positive)", ErrInvalidChunkSize, cfg.Size)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return fmt.Errorf("%w: overlap %d (must be in [0, size))", ErrInvalidOverlap, cfg.Overlap)
	}
	return nil
}

func validateWatch(cfg *WatchConfig) error {
	if cfg.Debounce <= 0 {
		return fmt.Errorf("%w: debounce must be positive", ErrInvalidWatchSettings)
	}
	if cfg.GraceDelay <= 0 {
		return fmt.Errorf("%w: grace delay must be positive", ErrInvalidWatchSettings)
	}
	if cfg.MoveWindow < cfg.GraceDelay {
		return fmt.Errorf("%w: move window must be at least the grace delay", ErrInvalidWatchSettings)
	}
	// Move matching requires the deletion side of a rename to be on record
	// before the creation side's debounce fires.
	if cfg.Debounce <= cfg.GraceDelay {
		return fmt.Errorf("%w: debounce must exceed the grace delay", ErrInvalidWatchSettings)
	}
	if cfg.RescanInterval <= 0 {
		return fmt.Errorf("%w: rescan interval must be positive", ErrInvalidWatchSettings)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidWatchSettings)
	}
	if cfg.RetryBaseDelay <= 0 {
		return fmt.Errorf("%w: retry base delay must be positive", ErrInvalidWatchSettings)
	}
	return nil
}
