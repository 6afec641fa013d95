package imageproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGridRoundTrip(t *testing.T) {
	g := NewGrid(4, 2)
	for i := range g.Pix {
		g.Pix[i] = float64(i) * 1.5
	}

	path := filepath.Join(t.TempDir(), "sample.grid")
	require.NoError(t, WriteGrid(path, g))

	got, err := ReadGrid(path)
	require.NoError(t, err)
	require.Equal(t, g.Width, got.Width)
	require.Equal(t, g.Height, got.Height)
	require.Equal(t, g.Pix, got.Pix)
}

func TestReadGridRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-grid.grid")
	require.NoError(t, os.WriteFile(path, []byte("PNGish junk data"), 0644))

	_, err := ReadGrid(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a grid file")
}

func TestWriteGridSizeMismatch(t *testing.T) {
	g := &Grid{Width: 3, Height: 3, Pix: make([]float64, 4)}

	err := WriteGrid(filepath.Join(t.TempDir(), "bad.grid"), g)
	require.Error(t, err)
}
