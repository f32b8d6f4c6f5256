package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rdalcega/docdex/internal/config"
	"github.com/rdalcega/docdex/internal/embed"
	"github.com/rdalcega/docdex/internal/store"
)

// Stats summarizes a directory ingestion run.
type Stats struct {
	Discovered  int
	Processed   int
	Skipped     int
	Failed      int
	Unsupported int
	Removed     int
	TotalChunks int
	Duration    time.Duration
}

// Progress receives ingestion lifecycle callbacks. A nil reporter is valid
// and disables reporting.
type Progress interface {
	OnDiscoveryStart()
	OnDiscoveryComplete(files int)
	OnIngestStart(totalFiles int)
	OnFileProcessed(name string)
	OnComplete(stats *Stats)
}

// Ingester drives the full pipeline for a root directory: discover, extract,
// chunk, embed, and replace chunks in the store, with a fingerprint cache to
// skip files whose content has not changed.
type Ingester struct {
	root      string
	cfg       *config.Config
	store     store.Store
	provider  embed.Provider
	cache     *FingerprintCache
	replacer  *Replacer
	discovery *Discovery
	progress  Progress
}

// NewIngester wires the pipeline together. root must be an absolute path.
func NewIngester(root string, cfg *config.Config, st store.Store, provider embed.Provider, cache *FingerprintCache, progress Progress) (*Ingester, error) {
	discovery, err := NewDiscovery(root, cfg.ExtensionSet(), cfg.Paths.Exclude)
	if err != nil {
		return nil, err
	}
	return &Ingester{
		root:      root,
		cfg:       cfg,
		store:     st,
		provider:  provider,
		cache:     cache,
		replacer:  NewReplacer(st),
		discovery: discovery,
		progress:  progress,
	}, nil
}

// Replacer exposes the transactional replacer so the watcher can share the
// same per-source locks as batch ingestion.
func (in *Ingester) Replacer() *Replacer { return in.replacer }

// Cache returns the fingerprint cache used to skip unchanged files.
func (in *Ingester) Cache() *FingerprintCache { return in.cache }

// Discovery returns the file eligibility rules for this root.
func (in *Ingester) Discovery() *Discovery { return in.discovery }

// RelPath converts an absolute path into the slash-separated source key
// chunks are stored under.
func (in *Ingester) RelPath(path string) (string, error) {
	rel, err := filepath.Rel(in.root, path)
	if err != nil {
		return "", fmt.Errorf("path %s is outside root %s: %w", path, in.root, err)
	}
	return filepath.ToSlash(rel), nil
}

// ProcessFile extracts, chunks, embeds, and stores one file, returning the
// number of chunks written. Unchanged files (per the fingerprint cache) are
// skipped unless force is set; a skip returns (0, nil) with changed=false.
// The cache entry is updated only after the store write succeeds, so a crash
// between the two re-processes the file instead of silently dropping it.
func (in *Ingester) ProcessFile(ctx context.Context, path string, force bool) (chunks int, changed bool, err error) {
	if !force && !in.cache.ShouldProcess(path) {
		return 0, false, nil
	}

	source, err := in.RelPath(path)
	if err != nil {
		return 0, false, err
	}

	text, err := ExtractText(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to extract %s: %w", source, err)
	}

	pieces := SplitText(text, in.cfg.Chunking.Size, in.cfg.Chunking.Overlap)

	var docs []store.Document
	if len(pieces) > 0 {
		embeddings, embErr := in.provider.Embed(ctx, pieces, embed.ModePassage)
		if embErr != nil {
			return 0, false, fmt.Errorf("failed to embed %s: %w", source, embErr)
		}
		docs = NewDocuments(source, pieces, embeddings)
	}

	if err := in.replacer.Replace(ctx, source, docs); err != nil {
		return 0, false, err
	}

	if err := in.cache.Update(path); err != nil {
		log.Printf("Warning: failed to update fingerprint for %s: %v", source, err)
	}
	return len(docs), true, nil
}

// IngestDirectory processes every eligible file under the root, removes
// chunks for files that no longer exist, and persists the fingerprint cache.
// Per-file failures are logged and counted, not fatal.
func (in *Ingester) IngestDirectory(ctx context.Context, force bool) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	if in.progress != nil {
		in.progress.OnDiscoveryStart()
	}
	files, err := in.discovery.Discover()
	if err != nil {
		return nil, err
	}
	stats.Discovered = len(files)
	if in.progress != nil {
		in.progress.OnDiscoveryComplete(len(files))
	}

	removed, err := in.CleanupDeleted(ctx)
	if err != nil {
		log.Printf("Warning: cleanup of deleted files failed: %v", err)
	}
	stats.Removed = removed

	if in.progress != nil {
		in.progress.OnIngestStart(len(files))
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunks, changed, err := in.ProcessFile(ctx, path, force)
		switch {
		case err != nil:
			if isUnsupportedFormat(err) {
				stats.Unsupported++
			} else {
				stats.Failed++
				log.Printf("Warning: failed to process %s: %v", path, err)
			}
		case changed:
			stats.Processed++
			stats.TotalChunks += chunks
		default:
			stats.Skipped++
		}
		if in.progress != nil {
			in.progress.OnFileProcessed(filepath.Base(path))
		}
	}

	if err := in.cache.Save(); err != nil {
		log.Printf("Warning: failed to save fingerprint cache: %v", err)
	}

	stats.Duration = time.Since(start)
	if in.progress != nil {
		in.progress.OnComplete(stats)
	}
	return stats, nil
}

func isUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// CleanupDeleted removes chunks and fingerprints for cached files that no
// longer exist on disk. Returns the number of files cleaned up.
func (in *Ingester) CleanupDeleted(ctx context.Context) (int, error) {
	removed := 0
	for _, path := range in.cache.Paths() {
		if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
			continue
		}
		source, err := in.RelPath(path)
		if err != nil {
			in.cache.Remove(path)
			continue
		}
		if _, err := in.replacer.Remove(ctx, source); err != nil {
			return removed, fmt.Errorf("failed to remove chunks for deleted file %s: %w", source, err)
		}
		in.cache.Remove(path)
		removed++
	}
	return removed, nil
}

// Issue is a single consistency problem found by CheckConsistency.
type Issue struct {
	Kind   string // "orphaned", "duplicate-ordinal", "stale-cache"
	Source string
	Detail string
}

// CheckConsistency compares the store, the fingerprint cache, and the
// filesystem, returning the discrepancies it finds.
func (in *Ingester) CheckConsistency(ctx context.Context) ([]Issue, error) {
	docs, err := in.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	var issues []Issue

	// Chunks whose source file is gone, and sources with colliding ordinals.
	ordinals := make(map[string]map[int]int)
	checkedSources := make(map[string]bool)
	for _, doc := range docs {
		source := doc.Metadata[store.MetaSource]
		if source == "" {
			issues = append(issues, Issue{Kind: "orphaned", Source: doc.ID, Detail: "chunk has no source metadata"})
			continue
		}

		if !checkedSources[source] {
			checkedSources[source] = true
			abs := filepath.Join(in.root, filepath.FromSlash(source))
			if _, err := os.Stat(abs); os.IsNotExist(err) {
				issues = append(issues, Issue{Kind: "orphaned", Source: source, Detail: "source file no longer exists"})
			}
		}

		ord, err := strconv.Atoi(doc.Metadata[store.MetaOrdinal])
		if err != nil {
			continue
		}
		if ordinals[source] == nil {
			ordinals[source] = make(map[int]int)
		}
		ordinals[source][ord]++
	}
	for source, counts := range ordinals {
		for ord, n := range counts {
			if n > 1 {
				issues = append(issues, Issue{
					Kind:   "duplicate-ordinal",
					Source: source,
					Detail: fmt.Sprintf("ordinal %d appears %d times", ord, n),
				})
			}
		}
	}

	// Cache entries for files that are gone.
	for _, path := range in.cache.Paths() {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			issues = append(issues, Issue{Kind: "stale-cache", Source: path, Detail: "cached file no longer exists"})
		}
	}

	return issues, nil
}

// Repair fixes the issues CheckConsistency reports: orphaned chunks and
// stale cache entries are removed, and sources with duplicate ordinals are
// re-ingested from disk. With dryRun set it only reports what it would do.
func (in *Ingester) Repair(ctx context.Context, dryRun bool) (int, error) {
	issues, err := in.CheckConsistency(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	reprocess := make(map[string]bool)
	for _, issue := range issues {
		if dryRun {
			log.Printf("Would fix: %s %s (%s)", issue.Kind, issue.Source, issue.Detail)
			fixed++
			continue
		}
		switch issue.Kind {
		case "orphaned":
			if _, err := in.replacer.Remove(ctx, issue.Source); err != nil {
				return fixed, err
			}
			fixed++
		case "stale-cache":
			in.cache.Remove(issue.Source)
			fixed++
		case "duplicate-ordinal":
			reprocess[issue.Source] = true
		}
	}

	for source := range reprocess {
		abs := filepath.Join(in.root, filepath.FromSlash(source))
		if _, _, err := in.ProcessFile(ctx, abs, true); err != nil {
			log.Printf("Warning: failed to re-ingest %s: %v", source, err)
			continue
		}
		fixed++
	}

	if !dryRun {
		if err := in.cache.Save(); err != nil {
			log.Printf("Warning: failed to save fingerprint cache: %v", err)
		}
	}
	return fixed, nil
}
