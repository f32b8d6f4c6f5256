package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rdalcega/docdex/internal/config"
	"github.com/rdalcega/docdex/internal/embed"
	"github.com/rdalcega/docdex/internal/ingest"
	"github.com/rdalcega/docdex/internal/store"
)

// app bundles the wired-up components every command needs: config, content
// store, embedding provider, fingerprint cache, and the ingestion pipeline.
type app struct {
	root     string
	cfg      *config.Config
	store    store.Store
	provider embed.Provider
	cache    *ingest.FingerprintCache
	ingester *ingest.Ingester
}

// newApp loads configuration for the target directory and opens everything.
// progress may be nil for commands that don't ingest.
func newApp(progress ingest.Progress) (*app, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	dbPath := filepath.Join(root, filepath.FromSlash(cfg.Store.DBPath))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}

	provider, err := embed.NewProvider(cfg.Embedding.Provider, cfg.Embedding.Dimensions)
	if err != nil {
		st.Close()
		return nil, err
	}

	cache := ingest.NewFingerprintCache(filepath.Join(root, filepath.FromSlash(cfg.Store.CachePath)))

	ingester, err := ingest.NewIngester(root, cfg, st, provider, cache, progress)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		root:     root,
		cfg:      cfg,
		store:    st,
		provider: provider,
		cache:    cache,
		ingester: ingester,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return abs, nil
}
