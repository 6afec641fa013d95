package imageproc

import (
	"image"
	"os"

	"golang.org/x/image/tiff"

	"gocv.io/x/gocv"
)

// TiffImageLoader handles TIFF images. Thermography cameras commonly export
// 16-bit TIFFs that OpenCV's build may or may not decode, so a pure-Go
// fallback is kept behind the direct load.
type TiffImageLoader struct {
	BaseImageLoader
}

// NewTiffImageLoader creates a new loader for TIFF files
func NewTiffImageLoader() *TiffImageLoader {
	return &TiffImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedExtensions: []string{".tif", ".tiff"},
		},
	}
}

// LoadImage loads a TIFF image
func (l *TiffImageLoader) LoadImage(path string) (gocv.Mat, error) {
	// Direct loading with OpenCV works for most standard TIFF files
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if !img.Empty() {
		return img, nil
	}
	img.Close()

	// Fall back to the pure-Go TIFF decoder
	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, newImageLoadError("failed to open TIFF image", path)
	}
	defer f.Close()

	decoded, err := tiff.Decode(f)
	if err != nil {
		return gocv.Mat{}, newImageLoadError("failed to decode TIFF image (all methods failed)", path)
	}

	return grayMatFromGoImage(decoded)
}

// WriteTiff encodes a Mat as a TIFF file using the pure-Go encoder. Used
// when OpenCV's IMWrite does not support TIFF in the local build.
func WriteTiff(path string, mat gocv.Mat) error {
	img, err := mat.ToImage()
	if err != nil {
		return newImageLoadError("cannot convert image for TIFF encoding", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return newImageLoadError("cannot create TIFF file", path)
	}
	defer f.Close()

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return newImageLoadError("failed to encode TIFF image", path)
	}
	return nil
}

// grayMatFromGoImage converts a Go standard library image to a single
// channel OpenCV Mat.
func grayMatFromGoImage(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// Convert from 0-65535 to 0-255 with the standard luma weights
			gray := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			mat.SetUCharAt(y, x, uint8(gray))
		}
	}
	return mat, nil
}
