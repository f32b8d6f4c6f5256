package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Discovery decides which files under a root directory are candidates for
// indexing: extension must be on the allow-list and the relative path must
// not match any exclusion glob. Exclusion patterns use the same syntax as
// .gitignore-style globs ("node_modules/**", ".git/**").
type Discovery struct {
	root       string
	extensions map[string]bool
	excludes   []glob.Glob
}

// NewDiscovery compiles the exclusion patterns up front so a bad pattern
// fails at startup rather than mid-walk.
func NewDiscovery(root string, extensions map[string]bool, excludePatterns []string) (*Discovery, error) {
	excludes := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, g)
	}
	return &Discovery{
		root:       root,
		extensions: extensions,
		excludes:   excludes,
	}, nil
}

// Excluded reports whether the slash-separated relative path matches any
// exclusion pattern.
func (d *Discovery) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range d.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// ExcludedDir reports whether a directory should be pruned entirely. A
// pattern like "node_modules/**" matches paths under the directory but not
// the directory itself, so the check probes a synthetic child path too.
func (d *Discovery) ExcludedDir(rel string) bool {
	rel = filepath.ToSlash(rel)
	return d.Excluded(rel) || d.Excluded(rel+"/_")
}

// Eligible reports whether an absolute path should be indexed: allowed
// extension, not excluded, not a dotfile, and not temp-named.
func (d *Discovery) Eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || IsTempName(path) {
		return false
	}
	if !d.extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	rel, err := filepath.Rel(d.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return !d.Excluded(rel)
}

// Discover walks the root and returns all eligible files in sorted order.
// Excluded directories are pruned without descending. Unreadable entries are
// skipped rather than aborting the walk.
func (d *Discovery) Discover() ([]string, error) {
	var found []string

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}

		rel, relErr := filepath.Rel(d.root, path)
		if relErr != nil {
			return nil
		}

		if entry.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(entry.Name(), ".") || d.ExcludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Eligible(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", d.root, err)
	}

	sort.Strings(found)
	return found, nil
}
