package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// SmallFileLimit is the size below which content hashes are recorded in the
// fingerprint cache. Larger files rely on mtime+size alone.
const SmallFileLimit = 1 << 20 // 1 MiB

const cacheVersion = "1.0"

// FingerprintEntry is the cached fact about one file's last-processed state.
type FingerprintEntry struct {
	MTime       int64  `json:"mtime"` // UnixNano
	Size        int64  `json:"size"`
	Hash        string `json:"hash,omitempty"`
	ProcessedAt int64  `json:"processed_at"` // Unix seconds
}

type cacheData struct {
	Version     string                      `json:"version"`
	LastUpdated int64                       `json:"last_updated"`
	Files       map[string]FingerprintEntry `json:"files"`
}

// FingerprintCache decides whether a file needs reprocessing by comparing
// its current mtime, size and (for small files) content hash against the
// state recorded after the last successful processing. The whole mapping is
// persisted as one JSON file; a corrupt or unreadable file degrades to an
// empty cache, which only costs re-indexing work.
type FingerprintCache struct {
	path string

	mu   sync.Mutex
	data cacheData
}

// NewFingerprintCache loads the cache at path, starting empty if the file is
// missing or corrupt.
func NewFingerprintCache(path string) *FingerprintCache {
	c := &FingerprintCache{
		path: path,
		data: cacheData{Version: cacheVersion, Files: make(map[string]FingerprintEntry)},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return c
	}

	var loaded cacheData
	if err := json.Unmarshal(raw, &loaded); err != nil || loaded.Files == nil {
		log.Printf("Warning: ignoring corrupt fingerprint cache %s", path)
		return c
	}
	loaded.Version = cacheVersion
	c.data = loaded
	return c
}

// ShouldProcess reports whether path needs (re)processing: true when the
// path has no cache entry or its mtime, size or small-file hash differ from
// the recorded values. A path that no longer exists returns false - there is
// nothing to process.
func (c *FingerprintCache) ShouldProcess(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	c.mu.Lock()
	entry, ok := c.data.Files[path]
	c.mu.Unlock()

	if !ok {
		return true
	}
	if entry.MTime != info.ModTime().UnixNano() || entry.Size != info.Size() {
		return true
	}

	// Extra safety for small files: mtime can be forged or truncated by
	// some filesystems, the content hash cannot.
	if info.Size() < SmallFileLimit && entry.Hash != "" {
		hash, err := FileHash(path)
		if err == nil && hash != entry.Hash {
			return true
		}
	}

	return false
}

// Update records path's current state. Call it only after the file's chunks
// have been successfully written to the store: updating the cache first would
// mean a crash between the two under-indexes the file permanently, whereas
// the reverse order merely reprocesses it.
func (c *FingerprintCache) Update(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	entry := FingerprintEntry{
		MTime:       info.ModTime().UnixNano(),
		Size:        info.Size(),
		ProcessedAt: time.Now().Unix(),
	}
	if info.Size() < SmallFileLimit {
		if hash, err := FileHash(path); err == nil {
			entry.Hash = hash
		}
	}

	c.mu.Lock()
	c.data.Files[path] = entry
	c.mu.Unlock()
	return nil
}

// Remove drops the entry for path; used on confirmed deletion.
func (c *FingerprintCache) Remove(path string) {
	c.mu.Lock()
	delete(c.data.Files, path)
	c.mu.Unlock()
}

// Rename relocates the entry for oldPath under newPath on a confirmed move,
// preserving the recorded state instead of forcing a reprocess.
func (c *FingerprintCache) Rename(oldPath, newPath string) {
	c.mu.Lock()
	if entry, ok := c.data.Files[oldPath]; ok {
		c.data.Files[newPath] = entry
		delete(c.data.Files, oldPath)
	}
	c.mu.Unlock()
}

// Get returns the entry for path, if present.
func (c *FingerprintCache) Get(path string) (FingerprintEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data.Files[path]
	return entry, ok
}

// Paths returns the cached file paths in sorted order.
func (c *FingerprintCache) Paths() []string {
	c.mu.Lock()
	paths := make([]string, 0, len(c.data.Files))
	for path := range c.data.Files {
		paths = append(paths, path)
	}
	c.mu.Unlock()
	sort.Strings(paths)
	return paths
}

// Len returns the number of cached entries.
func (c *FingerprintCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data.Files)
}

// Save persists the whole mapping to disk. Failures are the caller's to log;
// the in-memory state stays authoritative either way.
func (c *FingerprintCache) Save() error {
	c.mu.Lock()
	c.data.LastUpdated = time.Now().Unix()
	raw, err := json.MarshalIndent(c.data, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint cache: %w", err)
	}

	if err := os.WriteFile(c.path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write fingerprint cache: %w", err)
	}
	return nil
}

// FileHash computes the SHA-256 hash of a file's content, streamed so large
// files don't load into memory.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
