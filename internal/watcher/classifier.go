package watcher

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rdalcega/docdex/internal/ingest"
)

// inTempDirectory reports whether a path sits in an OS temp location. Only
// consulted for paths outside the watched root: a project rooted under /tmp
// must still be watchable, so directory shape alone never disqualifies an
// in-root path.
func inTempDirectory(path string) bool {
	slashed := filepath.ToSlash(path)
	if strings.HasPrefix(slashed, "/tmp/") || strings.Contains(slashed, "/.Trash/") {
		return true
	}
	// macOS per-user temp dirs: /var/folders/xx/yyyy/T/...
	if strings.HasPrefix(slashed, "/var/folders/") && strings.Contains(slashed, "/T/") {
		return true
	}
	return false
}

// pendingDeletion is a recently observed deletion that a subsequent create
// may claim as the source of a move.
type pendingDeletion struct {
	entry     ingest.FingerprintEntry
	deletedAt time.Time
}

// MoveDetector matches file creations against recent deletions to recognize
// moves and renames, so a moved file keeps its chunks instead of being
// deleted and re-ingested.
//
// Matching is scored: an identical content hash is decisive on its own, and
// weaker signals (same filename, extension, size) must combine to clear the
// threshold. Ties go to the most recent deletion.
//
// Records older than the window are ignored when matching but stay on record
// until claimed or cancelled: the deletion confirm timer fires at exactly the
// window boundary and must still find its record, so expiry never removes
// entries on its own.
type MoveDetector struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]pendingDeletion
}

const (
	scoreHash      = 100
	scoreFilename  = 50
	scoreExtension = 20
	scoreSize      = 30
	scoreThreshold = 50
)

// NewMoveDetector creates a detector that matches creations only against
// deletions observed within window.
func NewMoveDetector(window time.Duration) *MoveDetector {
	return &MoveDetector{
		window:  window,
		pending: make(map[string]pendingDeletion),
	}
}

// RecordDeletion registers a deleted path and its last known fingerprint as
// a candidate move source.
func (m *MoveDetector) RecordDeletion(path string, entry ingest.FingerprintEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[path] = pendingDeletion{entry: entry, deletedAt: time.Now()}
}

// Cancel drops a pending deletion, typically because the file reappeared.
// Reports whether a deletion was pending.
func (m *MoveDetector) Cancel(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[path]
	delete(m.pending, path)
	return ok
}

// Pending reports whether path still has an unclaimed deletion on record.
func (m *MoveDetector) Pending(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[path]
	return ok
}

// FindMoveSource returns the best-matching deleted path for a newly created
// file, claiming (removing) the deletion record. hash may be empty when the
// new file was too large to hash.
func (m *MoveDetector) FindMoveSource(newPath, hash string, size int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	newName := filepath.Base(newPath)
	newExt := strings.ToLower(filepath.Ext(newPath))

	bestPath := ""
	bestScore := 0
	var bestTime time.Time
	for path, pd := range m.pending {
		if now.Sub(pd.deletedAt) > m.window {
			continue
		}
		score := 0
		if hash != "" && pd.entry.Hash != "" && hash == pd.entry.Hash {
			score += scoreHash
		}
		if filepath.Base(path) == newName {
			score += scoreFilename
		}
		if strings.ToLower(filepath.Ext(path)) == newExt {
			score += scoreExtension
		}
		if size == pd.entry.Size {
			score += scoreSize
		}

		if score > bestScore || (score == bestScore && score > 0 && pd.deletedAt.After(bestTime)) {
			bestPath = path
			bestScore = score
			bestTime = pd.deletedAt
		}
	}

	if bestScore < scoreThreshold {
		return "", false
	}
	delete(m.pending, bestPath)
	return bestPath, true
}
