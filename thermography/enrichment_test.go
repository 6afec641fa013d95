package thermography

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"thermopipe/imageproc"
	"thermopipe/stage"
)

func writeGrayPNG(t *testing.T, dir, name string, value uint8, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}

	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestEnrichmentMergeChannelOrder(t *testing.T) {
	dirs, err := stage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	src := dirs.Path(stage.PreprocessedDir)
	require.NoError(t, os.MkdirAll(src, 0755))
	writeGrayPNG(t, src, "SampleA 0_5Hz SampleB.png", 10, 64, 64)
	writeGrayPNG(t, src, "SampleA 1Hz SampleB.png", 20, 64, 64)
	writeGrayPNG(t, src, "SampleA 2Hz SampleB.png", 30, 64, 64)

	enrich := NewEnrichment(testLogger(), dirs, imageproc.NewImageLoaderRegistry(), nil, 0)
	handoff, err := stage.Run(enrich)
	require.NoError(t, err)

	require.Len(t, handoff.Paths, 1)
	require.Equal(t, "SampleA SampleB.png", filepath.Base(handoff.Paths[0]))

	composite := gocv.IMRead(handoff.Paths[0], gocv.IMReadColor)
	require.False(t, composite.Empty())
	defer composite.Close()

	require.Equal(t, 3, composite.Channels())
	require.Equal(t, 64, composite.Rows())
	require.Equal(t, 64, composite.Cols())

	// Lowest frequency lands in red, highest in blue. OpenCV pixel access
	// is BGR ordered.
	pixel := composite.GetVecbAt(32, 32)
	require.Equal(t, uint8(30), pixel[0])
	require.Equal(t, uint8(20), pixel[1])
	require.Equal(t, uint8(10), pixel[2])
}

func TestEnrichmentShapeMismatch(t *testing.T) {
	dirs, err := stage.NewDirStore(t.TempDir())
	require.NoError(t, err)

	src := dirs.Path(stage.PreprocessedDir)
	require.NoError(t, os.MkdirAll(src, 0755))
	writeGrayPNG(t, src, "SampleA 0_5Hz SampleB.png", 10, 64, 64)
	writeGrayPNG(t, src, "SampleA 1Hz SampleB.png", 20, 32, 32)
	writeGrayPNG(t, src, "SampleA 2Hz SampleB.png", 30, 64, 64)

	enrich := NewEnrichment(testLogger(), dirs, imageproc.NewImageLoaderRegistry(), nil, 0)
	require.NoError(t, enrich.Load(nil))

	err = enrich.Process()
	var mismatch *ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Len(t, mismatch.Paths, 3)
	require.Contains(t, mismatch.Dims, "32x32")
}
