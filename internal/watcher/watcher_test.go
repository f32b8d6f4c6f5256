package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdalcega/docdex/internal/config"
	"github.com/rdalcega/docdex/internal/embed"
	"github.com/rdalcega/docdex/internal/ingest"
	"github.com/rdalcega/docdex/internal/store"
)

// Test Plan for Watcher:
// - A created file is indexed after the debounce settles
// - Rapid successive writes end with the final content indexed
// - Writing a temp file never touches the index
// - A delete followed by recreate within the grace period keeps the index
//   entry (atomic write transparency)
// - A deletion that stays deleted removes the file's chunks after the
//   grace delay and move window pass
// - A rename is recognized as a move: chunks keep their IDs, metadata
//   points at the new path
// - Files created in a new subdirectory are picked up
// - A temp-named file that somehow got indexed is still cleaned up when
//   deleted
// - A file whose format has no extraction method is attempted once and not
//   rescheduled by the rescan
// - Stop is idempotent and leaves no goroutines blocked

func testWatchConfig() config.WatchConfig {
	return config.WatchConfig{
		Debounce:       150 * time.Millisecond,
		GraceDelay:     50 * time.Millisecond,
		MoveWindow:     400 * time.Millisecond,
		RescanInterval: time.Hour, // keep rescans out of event-driven tests
		MaxRetries:     2,
		RetryBaseDelay: 10 * time.Millisecond,
	}
}

func startTestWatcher(t *testing.T) (string, *Watcher, *store.MemoryStore, *ingest.Ingester) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".docdex"), 0755))

	st := store.NewMemoryStore()
	cfg := config.Default()
	cache := ingest.NewFingerprintCache(filepath.Join(root, ".docdex", "fingerprints.json"))
	ing, err := ingest.NewIngester(root, cfg, st, embed.NewHashProvider(32), cache, nil)
	require.NoError(t, err)

	w, err := New(root, testWatchConfig(), ing)
	require.NoError(t, err)
	w.Start(context.Background())
	t.Cleanup(w.Stop)

	return root, w, st, ing
}

func waitForChunks(t *testing.T, st *store.MemoryStore, source string, want int) []store.Document {
	t.Helper()
	var docs []store.Document
	require.Eventually(t, func() bool {
		var err error
		docs, err = st.GetBySource(context.Background(), source)
		return err == nil && len(docs) == want
	}, 5*time.Second, 10*time.Millisecond, "waiting for %d chunks under %s", want, source)
	return docs
}

func TestWatcher_IndexesCreatedFile(t *testing.T) {
	t.Parallel()

	root, _, st, _ := startTestWatcher(t)

	path := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("fresh note"), 0644))

	docs := waitForChunks(t, st, "note.md", 1)
	assert.Contains(t, docs[0].Content, "fresh note")
}

func TestWatcher_RapidWritesEndWithFinalContent(t *testing.T) {
	t.Parallel()

	root, _, st, _ := startTestWatcher(t)
	path := filepath.Join(root, "draft.md")

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("revision"), 0644))
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, os.WriteFile(path, []byte("final text"), 0644))

	require.Eventually(t, func() bool {
		docs, err := st.GetBySource(context.Background(), "draft.md")
		return err == nil && len(docs) == 1 && docs[0].Content == "final text"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresTempFiles(t *testing.T) {
	t.Parallel()

	root, _, st, _ := startTestWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.md.tmp"), []byte("temp"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backup.md~"), []byte("temp"), 0644))

	time.Sleep(500 * time.Millisecond)
	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWatcher_AtomicWriteKeepsIndexEntry(t *testing.T) {
	t.Parallel()

	root, _, st, _ := startTestWatcher(t)
	path := filepath.Join(root, "settings.md")

	require.NoError(t, os.WriteFile(path, []byte("version one"), 0644))
	waitForChunks(t, st, "settings.md", 1)

	// Delete-then-recreate inside the grace period, the way atomic save
	// implementations replace a file.
	require.NoError(t, os.Remove(path))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("version two"), 0644))

	require.Eventually(t, func() bool {
		docs, err := st.GetBySource(context.Background(), "settings.md")
		return err == nil && len(docs) == 1 && docs[0].Content == "version two"
	}, 5*time.Second, 10*time.Millisecond)

	// It must never have gone through a confirmed deletion: the chunk ID
	// is stable either way, but the store must hold exactly one document.
	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWatcher_ConfirmedDeletionRemovesChunks(t *testing.T) {
	t.Parallel()

	root, _, st, _ := startTestWatcher(t)
	path := filepath.Join(root, "doomed.md")

	require.NoError(t, os.WriteFile(path, []byte("short lived"), 0644))
	waitForChunks(t, st, "doomed.md", 1)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		count, err := st.Count(context.Background())
		return err == nil && count == 0
	}, 5*time.Second, 10*time.Millisecond, "chunks should be removed after the move window closes")
}

func TestWatcher_RenameIsAMove(t *testing.T) {
	t.Parallel()

	root, _, st, _ := startTestWatcher(t)
	oldPath := filepath.Join(root, "original.md")
	newPath := filepath.Join(root, "renamed.md")

	require.NoError(t, os.WriteFile(oldPath, []byte("movable content"), 0644))
	before := waitForChunks(t, st, "original.md", 1)

	require.NoError(t, os.Rename(oldPath, newPath))

	after := waitForChunks(t, st, "renamed.md", 1)
	assert.Equal(t, before[0].ID, after[0].ID, "a move must not reassign chunk IDs")
	assert.Equal(t, "renamed.md", after[0].Metadata[store.MetaSource])
	assert.Equal(t, before[0].Content, after[0].Content)

	// Nothing left under the old source, and no duplicate chunks.
	require.Eventually(t, func() bool {
		count, err := st.Count(context.Background())
		return err == nil && count == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_PicksUpNewSubdirectory(t *testing.T) {
	t.Parallel()

	root, _, st, _ := startTestWatcher(t)

	sub := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.md"), []byte("inside"), 0644))

	waitForChunks(t, st, "nested/inner.md", 1)
}

func TestWatcher_TempNamedLeftoverIsCleanedUp(t *testing.T) {
	t.Parallel()

	root, _, st, ing := startTestWatcher(t)
	path := filepath.Join(root, "draft.tmp.md")
	require.NoError(t, os.WriteFile(path, []byte("leftover"), 0644))

	// Index it directly, the way a cache from an older version could have.
	_, changed, err := ing.ProcessFile(context.Background(), path, true)
	require.NoError(t, err)
	require.True(t, changed)
	waitForChunks(t, st, "draft.tmp.md", 1)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		count, err := st.Count(context.Background())
		return err == nil && count == 0
	}, 5*time.Second, 10*time.Millisecond, "previously indexed chunks must go away on confirmed deletion")
}

func TestWatcher_UnsupportedFormatNotRescheduled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".docdex"), 0755))

	st := store.NewMemoryStore()
	cache := ingest.NewFingerprintCache(filepath.Join(root, ".docdex", "fingerprints.json"))
	ing, err := ingest.NewIngester(root, config.Default(), st, embed.NewHashProvider(32), cache, nil)
	require.NoError(t, err)

	path := filepath.Join(root, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))

	// The event loop stays unstarted so the calls below are the only
	// processing that happens.
	w, err := New(root, testWatchConfig(), ing)
	require.NoError(t, err)
	t.Cleanup(func() {
		w.debounce.Stop()
		w.fs.Close()
	})

	w.processPath(context.Background(), path)
	assert.True(t, w.isKnownUnsupported(path))

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	w.rescan(context.Background())
	assert.False(t, w.debounce.Pending(processKey(path)),
		"the rescan must not reschedule a format with no extraction method")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	_, w, _, _ := startTestWatcher(t)
	w.Stop()
	w.Stop()
}
