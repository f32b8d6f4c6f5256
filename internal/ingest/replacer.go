package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rdalcega/docdex/internal/store"
)

// RollbackError reports that a failed replace could not be rolled back: the
// store may now be missing content that existed moments before. It is the
// one condition an operator must act on, so it is distinct from ordinary
// retryable errors.
type RollbackError struct {
	Source   string
	Original error // the failure that triggered the rollback
	Cause    error // the failure of the rollback itself
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("CRITICAL: rollback failed for %s: %v (while recovering from: %v)",
		e.Source, e.Cause, e.Original)
}

func (e *RollbackError) Unwrap() error { return e.Cause }

// Replacer swaps a source file's chunks in the store atomically from the
// caller's point of view. The backing store only guarantees per-call
// atomicity, so Replace compensates: it captures the pre-image first and
// re-inserts it verbatim if the delete or insert fails, leaving either the
// old chunk set or the new one, never a partial union.
//
// Operations on the same source are serialized with a per-source mutex so
// two overlapping debounced reprocessings cannot interleave their
// backup/commit steps.
type Replacer struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReplacer creates a replacer over the given store.
func NewReplacer(st store.Store) *Replacer {
	return &Replacer{
		store: st,
		locks: make(map[string]*sync.Mutex),
	}
}

// Replace swaps the chunks stored under source for docs. docs must be fully
// computed before the call: no store mutation happens until the pre-image is
// backed up. On failure the backup is re-inserted and the original error
// returned; if that re-insert itself fails, the returned error is a
// *RollbackError.
func (r *Replacer) Replace(ctx context.Context, source string, docs []store.Document) error {
	unlock := r.lockSources(source)
	defer unlock()

	backup, err := r.store.GetBySource(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to back up chunks for %s: %w", source, err)
	}

	if len(backup) > 0 {
		ids := documentIDs(backup)
		if err := r.store.Delete(ctx, ids); err != nil {
			return r.rollback(ctx, source, backup, fmt.Errorf("failed to delete old chunks for %s: %w", source, err))
		}
	}

	if err := r.store.Upsert(ctx, docs); err != nil {
		return r.rollback(ctx, source, backup, fmt.Errorf("failed to insert new chunks for %s: %w", source, err))
	}

	return nil
}

// Remove deletes all chunks stored under source. Used for confirmed
// deletions; removing a source with no chunks is a no-op.
func (r *Replacer) Remove(ctx context.Context, source string) (int, error) {
	unlock := r.lockSources(source)
	defer unlock()

	docs, err := r.store.GetBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to read chunks for %s: %w", source, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := r.store.Delete(ctx, documentIDs(docs)); err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", source, err)
	}
	return len(docs), nil
}

// Move rewrites the path-derived metadata of oldSource's chunks to newSource
// and upserts them under their existing IDs in a single call - no
// delete+reinsert race window, and IDs survive the move. Returns false when
// oldSource had no chunks.
func (r *Replacer) Move(ctx context.Context, oldSource, newSource string) (bool, error) {
	unlock := r.lockSources(oldSource, newSource)
	defer unlock()

	docs, err := r.store.GetBySource(ctx, oldSource)
	if err != nil {
		return false, fmt.Errorf("failed to read chunks for %s: %w", oldSource, err)
	}
	if len(docs) == 0 {
		return false, nil
	}

	for i := range docs {
		docs[i].Metadata = RelocateMetadata(docs[i].Metadata, newSource)
	}

	if err := r.store.Upsert(ctx, docs); err != nil {
		return false, fmt.Errorf("failed to move chunks %s -> %s: %w", oldSource, newSource, err)
	}
	return true, nil
}

// rollback re-inserts the backup verbatim and returns the original error,
// or a *RollbackError if even that fails.
func (r *Replacer) rollback(ctx context.Context, source string, backup []store.Document, original error) error {
	if len(backup) == 0 {
		return original
	}
	if err := r.store.Upsert(ctx, backup); err != nil {
		return &RollbackError{Source: source, Original: original, Cause: err}
	}
	return original
}

// lockSources acquires the per-source mutexes for the given sources in a
// deterministic order and returns the matching unlock function.
func (r *Replacer) lockSources(sources ...string) func() {
	sorted := make([]string, len(sources))
	copy(sorted, sources)
	sort.Strings(sorted)

	var held []*sync.Mutex
	seen := make(map[string]bool, len(sorted))
	for _, s := range sorted {
		if seen[s] {
			continue
		}
		seen[s] = true
		held = append(held, r.lockFor(s))
	}
	for _, m := range held {
		m.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (r *Replacer) lockFor(source string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[source]
	if !ok {
		m = &sync.Mutex{}
		r.locks[source] = m
	}
	return m
}

func documentIDs(docs []store.Document) []string {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids
}
