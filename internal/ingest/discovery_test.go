package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Discovery:
// - Discover finds files with allowed extensions, sorted
// - Excluded directories are pruned, including nested content
// - Dotfiles and dot-directories are skipped
// - Disallowed extensions are skipped
// - Eligible agrees with Discover for individual paths
// - Temp-named files are rejected by both Eligible and Discover
// - Invalid exclude patterns fail at construction

func testExtensions() map[string]bool {
	return map[string]bool{".md": true, ".txt": true}
}

func populateTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	}
}

func TestDiscovery_FindsEligibleFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	populateTree(t, root,
		"readme.md",
		"notes/plan.txt",
		"notes/image.png",
	)

	d, err := NewDiscovery(root, testExtensions(), nil)
	require.NoError(t, err)

	files, err := d.Discover()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(root, "notes", "plan.txt"), files[0])
	assert.Equal(t, filepath.Join(root, "readme.md"), files[1])
}

func TestDiscovery_ExcludesDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	populateTree(t, root,
		"keep.md",
		"node_modules/pkg/readme.md",
		"code/deep/nested/file.md",
	)

	d, err := NewDiscovery(root, testExtensions(), []string{"node_modules/**", "code/**"})
	require.NoError(t, err)

	files, err := d.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "keep.md"), files[0])
}

func TestDiscovery_SkipsDotfiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	populateTree(t, root,
		"visible.md",
		".hidden.md",
		".git/config.md",
	)

	d, err := NewDiscovery(root, testExtensions(), nil)
	require.NoError(t, err)

	files, err := d.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "visible.md"), files[0])
}

func TestDiscovery_Eligible(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d, err := NewDiscovery(root, testExtensions(), []string{"archive/**"})
	require.NoError(t, err)

	assert.True(t, d.Eligible(filepath.Join(root, "a.md")))
	assert.True(t, d.Eligible(filepath.Join(root, "sub", "b.txt")))
	assert.False(t, d.Eligible(filepath.Join(root, "a.png")), "disallowed extension")
	assert.False(t, d.Eligible(filepath.Join(root, ".secret.md")), "dotfile")
	assert.False(t, d.Eligible(filepath.Join(root, "archive", "old.md")), "excluded directory")
	assert.False(t, d.Eligible("/elsewhere/a.md"), "outside root")
	assert.False(t, d.Eligible(filepath.Join(root, "draft.tmp.md")), "temp-named")
	assert.False(t, d.Eligible(filepath.Join(root, "draft.md~")), "editor backup")
}

func TestDiscovery_SkipsTempNamedFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	populateTree(t, root,
		"real.md",
		"draft.tmp.md",
		"notes.md~",
	)

	d, err := NewDiscovery(root, testExtensions(), nil)
	require.NoError(t, err)

	files, err := d.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "real.md"), files[0])
}

func TestDiscovery_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewDiscovery(t.TempDir(), testExtensions(), []string{"[bad"})
	require.Error(t, err)
}
