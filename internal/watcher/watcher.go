package watcher

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rdalcega/docdex/internal/config"
	"github.com/rdalcega/docdex/internal/ingest"
)

// atomicReprocessDelay is the short debounce used when a deleted file
// reappears within the grace period. The write already settled, so the full
// debounce would only add latency.
const atomicReprocessDelay = 500 * time.Millisecond

// Watcher keeps the store in sync with a directory tree as files change.
// It debounces rapid edits, sees through delete-then-recreate atomic write
// patterns, recognizes moves so chunks keep their IDs, and falls back to a
// periodic rescan for events the OS notifier misses.
type Watcher struct {
	root     string
	cfg      config.WatchConfig
	ingester *ingest.Ingester
	fs       *fsnotify.Watcher
	debounce *Debouncer
	moves    *MoveDetector

	// Paths whose format has no extraction method, so the rescan loop does
	// not retry them every interval. Keyed by path; a path's extension never
	// changes, so entries only leave on confirmed deletion.
	unsupMu     sync.Mutex
	unsupported map[string]struct{}

	ctx      context.Context
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a watcher over the ingester's root directory. All directories
// except excluded ones are registered up front; new ones are added as they
// appear.
func New(root string, cfg config.WatchConfig, ingester *ingest.Ingester) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:        root,
		cfg:         cfg,
		ingester:    ingester,
		fs:          fs,
		debounce:    NewDebouncer(),
		moves:       NewMoveDetector(cfg.MoveWindow),
		unsupported: make(map[string]struct{}),
	}

	if err := w.addDirectoriesRecursively(root); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

// Start begins processing events until the context is canceled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) {
	w.ctx = ctx
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.watch(ctx)
}

// Stop shuts the watcher down and waits for the event loop to exit. Pending
// debounced work is dropped; the next run's rescan picks it up.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.debounce.Stop()
		w.fs.Close()
		if err := w.ingester.Cache().Save(); err != nil {
			log.Printf("Warning: failed to save fingerprint cache: %v", err)
		}
	})
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	rescan := time.NewTicker(w.cfg.RescanInterval)
	defer rescan.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case <-rescan.C:
			w.rescan(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name
	if w.cfg.Debug {
		log.Printf("Event: %s %s", event.Op, path)
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(ctx, path)
			return
		}
		w.handleCreate(ctx, path)

	case event.Op&fsnotify.Write != 0:
		w.handleWrite(path)

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename carries no destination path, so it is treated as an
		// observed deletion; the create at the destination is matched back
		// through the move detector.
		w.handleDeletion(ctx, path)
	}
}

// handleNewDirectory registers a created directory (and anything already
// inside it) and ingests files that landed before the watch was in place.
func (w *Watcher) handleNewDirectory(ctx context.Context, path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || w.ingester.Discovery().ExcludedDir(rel) {
		return
	}
	if err := w.addDirectoriesRecursively(path); err != nil {
		log.Printf("Warning: failed to watch new directory %s: %v", path, err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.handleCreate(ctx, filepath.Join(path, entry.Name()))
		}
	}
}

// isTempPath reports whether an event path should be ignored as temporary.
// Name conventions apply everywhere; temp-directory shapes only count for
// paths outside the watched root, so a project rooted under /tmp is still
// watchable.
func (w *Watcher) isTempPath(path string) bool {
	if ingest.IsTempName(path) {
		return true
	}
	if path == w.root || strings.HasPrefix(path, w.root+string(filepath.Separator)) {
		return false
	}
	return inTempDirectory(path)
}

func (w *Watcher) handleCreate(ctx context.Context, path string) {
	if w.isTempPath(path) || !w.ingester.Discovery().Eligible(path) {
		return
	}

	// Reappearance of a file whose deletion is still in its grace period
	// means an atomic write, not a create.
	pendingDelete := w.moves.Cancel(path)
	if w.debounce.Cancel(deleteKey(path)) {
		pendingDelete = true
	}
	if pendingDelete {
		if w.cfg.Verbose {
			log.Printf("Atomic write detected: %s", path)
		}
		w.scheduleProcess(path, atomicReprocessDelay)
		return
	}

	// Move matching is deferred to the debounce firing: a rename's deletion
	// side only enters the detector after its grace delay, which is shorter
	// than the debounce, so by then a moved-away source is on record.
	w.debounce.Schedule(processKey(path), w.cfg.Debounce, func() {
		if oldPath, ok := w.findMoveSource(path); ok {
			w.handleMove(ctx, oldPath, path)
			return
		}
		w.processPath(w.ctx, path)
	})
}

func (w *Watcher) handleWrite(path string) {
	if w.isTempPath(path) || !w.ingester.Discovery().Eligible(path) {
		return
	}
	// A write can follow a spurious delete event for the same path.
	w.moves.Cancel(path)
	w.debounce.Cancel(deleteKey(path))

	w.scheduleProcess(path, w.cfg.Debounce)
}

// handleDeletion starts the two-stage confirmation: after the grace delay
// the file may have reappeared (atomic write), and after the move window a
// still-unclaimed deletion is final.
func (w *Watcher) handleDeletion(ctx context.Context, path string) {
	// A cache-known path was indexed at some point, so its chunks must be
	// cleaned up no matter what its name looks like now.
	entry, known := w.ingester.Cache().Get(path)
	if !known && (w.isTempPath(path) || !w.ingester.Discovery().Eligible(path)) {
		return
	}

	w.debounce.Cancel(processKey(path))

	w.debounce.Schedule(deleteKey(path), w.cfg.GraceDelay, func() {
		if _, err := os.Stat(path); err == nil {
			if w.cfg.Verbose {
				log.Printf("File reappeared after delete, reprocessing: %s", path)
			}
			w.scheduleProcess(path, atomicReprocessDelay)
			return
		}

		w.moves.RecordDeletion(path, entry)
		w.debounce.Schedule(deleteKey(path), w.cfg.MoveWindow, func() {
			if !w.moves.Cancel(path) {
				return // claimed as a move source in the meantime
			}
			w.confirmDeletion(ctx, path)
		})
	})
}

// findMoveSource fingerprints the new file and asks the move detector for a
// matching recent deletion.
func (w *Watcher) findMoveSource(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	hash := ""
	if info.Size() < ingest.SmallFileLimit {
		if h, err := ingest.FileHash(path); err == nil {
			hash = h
		}
	}
	return w.moves.FindMoveSource(path, hash, info.Size())
}

// handleMove relocates chunks in the store under the new path, keeping their
// IDs, and carries the fingerprint over. When the moved file's content
// differs from what the fingerprint recorded, the follow-up process run
// catches it.
func (w *Watcher) handleMove(ctx context.Context, oldPath, newPath string) {
	w.debounce.Cancel(deleteKey(oldPath))
	w.debounce.Cancel(processKey(oldPath))

	oldSource, err := w.ingester.RelPath(oldPath)
	if err != nil {
		w.scheduleProcess(newPath, w.cfg.Debounce)
		return
	}
	newSource, err := w.ingester.RelPath(newPath)
	if err != nil {
		return
	}

	var moved bool
	err = retry(ctx, w.cfg.MaxRetries, w.cfg.RetryBaseDelay, "move", func() error {
		var mvErr error
		moved, mvErr = w.ingester.Replacer().Move(ctx, oldSource, newSource)
		return mvErr
	})
	if err != nil {
		log.Printf("Error: failed to move chunks %s -> %s: %v", oldSource, newSource, err)
		w.scheduleProcess(newPath, w.cfg.Debounce)
		return
	}

	if !moved {
		// Nothing stored under the old path; ingest from scratch.
		w.scheduleProcess(newPath, w.cfg.Debounce)
		return
	}

	w.ingester.Cache().Rename(oldPath, newPath)
	w.saveCache()
	if w.cfg.Verbose {
		log.Printf("✓ Moved %s -> %s (chunks preserved)", oldSource, newSource)
	}
	// Pick up content edits that happened around the move.
	w.scheduleProcess(newPath, atomicReprocessDelay)
}

func (w *Watcher) confirmDeletion(ctx context.Context, path string) {
	source, err := w.ingester.RelPath(path)
	if err != nil {
		return
	}

	var removed int
	err = retry(ctx, w.cfg.MaxRetries, w.cfg.RetryBaseDelay, "delete", func() error {
		var rmErr error
		removed, rmErr = w.ingester.Replacer().Remove(ctx, source)
		return rmErr
	})
	if err != nil {
		log.Printf("Error: failed to remove chunks for %s: %v", source, err)
		return
	}

	w.ingester.Cache().Remove(path)
	w.clearUnsupported(path)
	w.saveCache()
	if w.cfg.Verbose && removed > 0 {
		log.Printf("✓ Removed %d chunks for deleted file %s", removed, source)
	}
}

func (w *Watcher) markUnsupported(path string) {
	w.unsupMu.Lock()
	defer w.unsupMu.Unlock()
	w.unsupported[path] = struct{}{}
}

func (w *Watcher) isKnownUnsupported(path string) bool {
	w.unsupMu.Lock()
	defer w.unsupMu.Unlock()
	_, ok := w.unsupported[path]
	return ok
}

func (w *Watcher) clearUnsupported(path string) {
	w.unsupMu.Lock()
	defer w.unsupMu.Unlock()
	delete(w.unsupported, path)
}

func (w *Watcher) scheduleProcess(path string, delay time.Duration) {
	w.debounce.Schedule(processKey(path), delay, func() {
		w.processPath(w.ctx, path)
	})
}

func (w *Watcher) processPath(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return // gone again before the debounce fired
	}
	if w.isKnownUnsupported(path) {
		return
	}

	var chunks int
	var changed bool
	err := retry(ctx, w.cfg.MaxRetries, w.cfg.RetryBaseDelay, "process "+filepath.Base(path), func() error {
		var procErr error
		chunks, changed, procErr = w.ingester.ProcessFile(ctx, path, false)
		if procErr != nil && errors.Is(procErr, ingest.ErrUnsupportedFormat) {
			// Extraction support is a property of the extension; retrying or
			// rescanning the same path can never succeed.
			w.markUnsupported(path)
			if w.cfg.Verbose {
				log.Printf("Skipping %s: no extraction method", filepath.Base(path))
			}
			procErr = nil
		}
		return procErr
	})
	if err != nil {
		var rbErr *ingest.RollbackError
		if errors.As(err, &rbErr) {
			log.Printf("%v", rbErr)
			return
		}
		log.Printf("Error: failed to process %s: %v", path, err)
		return
	}

	if changed {
		w.saveCache()
		if w.cfg.Verbose {
			source, _ := w.ingester.RelPath(path)
			log.Printf("✓ Reindexed %s (%d chunks)", source, chunks)
		}
	}
}

// rescan is the safety net for missed events: stat every cached file and
// walk the tree, synthesizing the change and deletion handling the notifier
// should have driven.
func (w *Watcher) rescan(ctx context.Context) {
	files, err := w.ingester.Discovery().Discover()
	if err != nil {
		log.Printf("Warning: rescan walk failed: %v", err)
		return
	}

	onDisk := make(map[string]bool, len(files))
	for _, path := range files {
		onDisk[path] = true
		if w.ingester.Cache().ShouldProcess(path) && !w.isKnownUnsupported(path) &&
			!w.debounce.Pending(processKey(path)) && !w.debounce.Pending(deleteKey(path)) {
			if w.cfg.Debug {
				log.Printf("Rescan found changed file: %s", path)
			}
			w.scheduleProcess(path, w.cfg.Debounce)
		}
	}

	for _, path := range w.ingester.Cache().Paths() {
		if onDisk[path] || w.debounce.Pending(deleteKey(path)) || w.moves.Pending(path) {
			continue
		}
		if !strings.HasPrefix(path, w.root+string(filepath.Separator)) {
			continue
		}
		if w.cfg.Debug {
			log.Printf("Rescan found deleted file: %s", path)
		}
		w.handleDeletion(ctx, path)
	}
}

func (w *Watcher) saveCache() {
	if err := w.ingester.Cache().Save(); err != nil {
		log.Printf("Warning: failed to save fingerprint cache: %v", err)
	}
}

func (w *Watcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Warning: error accessing %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && path != rootPath {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr == nil && rel != "." && w.ingester.Discovery().ExcludedDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}

func processKey(path string) string { return "proc:" + path }
func deleteKey(path string) string  { return "del:" + path }
