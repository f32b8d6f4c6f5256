package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for IsTempName:
// - Editor and atomic-write temp names are recognized
// - Regular document names are not flagged, even when they contain
//   temp-looking substrings

func TestIsTempName(t *testing.T) {
	t.Parallel()

	temp := []string{
		"/docs/report.md.tmp",
		"/docs/report.temp",
		"/docs/report.md~",
		"/docs/.report.md.swp",
		"/docs/report.md.swo",
		"/docs/report.bak",
		"/docs/report.orig",
		"/docs/report.tmp.12345",
		"/docs/draft.tmp.md",
		"/docs/.#report.md",
		"/docs/#report.md#",
	}
	for _, p := range temp {
		assert.True(t, IsTempName(p), "should be temp: %s", p)
	}

	normal := []string{
		"/docs/report.md",
		"/docs/temperature-study.md",
		"/docs/notes.txt",
		"/docs/tmpfs-guide.md",
		"/tmp/project/report.md",
	}
	for _, p := range normal {
		assert.False(t, IsTempName(p), "should not be temp: %s", p)
	}
}
