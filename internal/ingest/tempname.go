package ingest

import (
	"path/filepath"
	"strings"
)

// tempSuffixes mark editor scratch files and in-progress atomic writes.
var tempSuffixes = []string{
	".tmp", ".temp", "~", ".bak", ".swp", ".swo", ".orig",
}

// tempInfixes catch temp markers in the middle of a name, like
// "report.tmp.12345" produced by write-temp-then-rename tools.
var tempInfixes = []string{
	".tmp.", ".temp.", ".bak.",
}

// IsTempName reports whether a file's name matches a temporary or scratch
// naming convention. Discovery and the watcher both consult it, so batch
// ingestion and watch mode agree on what is indexable. The checks are
// heuristics tuned for common editors and atomic-write tools, not a
// guarantee.
func IsTempName(path string) bool {
	name := strings.ToLower(filepath.Base(path))

	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	for _, infix := range tempInfixes {
		if strings.Contains(name, infix) {
			return true
		}
	}
	return strings.HasPrefix(name, ".#") || strings.HasPrefix(name, "#")
}
