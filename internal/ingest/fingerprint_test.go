package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FingerprintCache:
// - Unknown files need processing, recorded unchanged files do not
// - Content changes are caught via size/mtime
// - Content changes with forged mtime and same size are caught via hash
// - Deleted files never need processing
// - Save/load round-trips entries
// - Corrupt or missing cache files load as empty, not as errors
// - Rename carries an entry to the new path
// - Remove drops an entry

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFingerprintCache_UnknownFileNeedsProcessing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.md", "hello")

	cache := NewFingerprintCache(filepath.Join(dir, "cache.json"))
	assert.True(t, cache.ShouldProcess(path))
}

func TestFingerprintCache_UnchangedFileSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.md", "hello")

	cache := NewFingerprintCache(filepath.Join(dir, "cache.json"))
	require.NoError(t, cache.Update(path))
	assert.False(t, cache.ShouldProcess(path))
}

func TestFingerprintCache_ChangedContentDetected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.md", "hello")

	cache := NewFingerprintCache(filepath.Join(dir, "cache.json"))
	require.NoError(t, cache.Update(path))

	require.NoError(t, os.WriteFile(path, []byte("hello again"), 0644))
	assert.True(t, cache.ShouldProcess(path))
}

func TestFingerprintCache_SameSizeForgedMTimeDetectedByHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.md", "aaaa")

	cache := NewFingerprintCache(filepath.Join(dir, "cache.json"))
	require.NoError(t, cache.Update(path))

	// Same length, different content, mtime restored to the recorded value.
	entry, ok := cache.Get(path)
	require.True(t, ok)
	require.NoError(t, os.WriteFile(path, []byte("bbbb"), 0644))
	mtime := time.Unix(0, entry.MTime)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	assert.True(t, cache.ShouldProcess(path))
}

func TestFingerprintCache_MissingFileNotProcessed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cache := NewFingerprintCache(filepath.Join(dir, "cache.json"))
	assert.False(t, cache.ShouldProcess(filepath.Join(dir, "gone.md")))
}

func TestFingerprintCache_SaveAndReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	path := writeTestFile(t, dir, "a.md", "hello")

	cache := NewFingerprintCache(cachePath)
	require.NoError(t, cache.Update(path))
	require.NoError(t, cache.Save())

	reloaded := NewFingerprintCache(cachePath)
	assert.Equal(t, 1, reloaded.Len())
	assert.False(t, reloaded.ShouldProcess(path))

	entry, ok := reloaded.Get(path)
	require.True(t, ok)
	assert.NotEmpty(t, entry.Hash)
}

func TestFingerprintCache_CorruptFileLoadsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cachePath := writeTestFile(t, dir, "cache.json", "{not json at all")

	cache := NewFingerprintCache(cachePath)
	assert.Equal(t, 0, cache.Len())

	// Still usable after the bad load.
	path := writeTestFile(t, dir, "a.md", "hello")
	require.NoError(t, cache.Update(path))
	require.NoError(t, cache.Save())
	assert.Equal(t, 1, NewFingerprintCache(cachePath).Len())
}

func TestFingerprintCache_Rename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oldPath := writeTestFile(t, dir, "old.md", "hello")
	newPath := filepath.Join(dir, "new.md")

	cache := NewFingerprintCache(filepath.Join(dir, "cache.json"))
	require.NoError(t, cache.Update(oldPath))

	require.NoError(t, os.Rename(oldPath, newPath))
	cache.Rename(oldPath, newPath)

	_, ok := cache.Get(oldPath)
	assert.False(t, ok)
	assert.False(t, cache.ShouldProcess(newPath), "renamed file with unchanged content should not reprocess")
}

func TestFingerprintCache_Remove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.md", "hello")

	cache := NewFingerprintCache(filepath.Join(dir, "cache.json"))
	require.NoError(t, cache.Update(path))
	cache.Remove(path)

	assert.Equal(t, 0, cache.Len())
	assert.True(t, cache.ShouldProcess(path))
}

func TestFileHash_Deterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.md", "identical content")
	b := writeTestFile(t, dir, "b.md", "identical content")
	c := writeTestFile(t, dir, "c.md", "different content")

	hashA, err := FileHash(a)
	require.NoError(t, err)
	hashB, err := FileHash(b)
	require.NoError(t, err)
	hashC, err := FileHash(c)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
	assert.NotEqual(t, hashA, hashC)
}
