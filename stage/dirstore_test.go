package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReplaceIsDestructive(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	// First save run.
	dir, err := store.Replace(IQADir)
	require.NoError(t, err)
	writeFile(t, dir, "first run.png", "a")
	writeFile(t, dir, "stale.png", "b")

	// Second save run against the same directory.
	dir, err = store.Replace(IQADir)
	require.NoError(t, err)
	writeFile(t, dir, "second run.png", "c")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "second run.png", entries[0].Name())
}

func TestListImagesFiltersAndSorts(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	dir, err := store.Replace(AcquiredDir)
	require.NoError(t, err)
	writeFile(t, dir, "b 1Hz c.png", "x")
	writeFile(t, dir, "a 1Hz c.tiff", "x")
	writeFile(t, dir, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	paths, err := store.ListImages("acquisition", AcquiredDir, ImageExtensions)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, "a 1Hz c.tiff", filepath.Base(paths[0]))
	require.Equal(t, "b 1Hz c.png", filepath.Base(paths[1]))
}

func TestListImagesMissingDir(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.ListImages("iqa", IQADir, ImageExtensions)

	var merr *MissingDirError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, "iqa", merr.Stage)
}

func TestCopyFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	srcPath := writeFile(t, src, "Sample 1Hz Part.png", "pixels")

	destPath, err := CopyFile(srcPath, dest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dest, "Sample 1Hz Part.png"), destPath)

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	require.Equal(t, "pixels", string(data))
}

func TestIntermediateExtensionsIncludeGrid(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	dir, err := store.Replace(EnrichmentDir)
	require.NoError(t, err)
	writeFile(t, dir, "Sample Part.grid", "x")
	writeFile(t, dir, "Sample Part.png", "x")

	paths, err := store.ListImages("defect_detection", EnrichmentDir, IntermediateExtensions)
	require.NoError(t, err)
	require.Len(t, paths, 2)
}
