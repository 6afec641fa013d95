package imageproc

import (
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// MatToFloats copies a single-channel 8-bit Mat into a float64 pixel array
// in row-major order.
func MatToFloats(mat gocv.Mat) []float64 {
	rows, cols := mat.Rows(), mat.Cols()
	pix := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			pix[y*cols+x] = float64(mat.GetUCharAt(y, x))
		}
	}
	return pix
}

// GrayMatFromFloats builds a single-channel 8-bit Mat from a row-major
// float64 pixel array, clamping values to [0,255].
func GrayMatFromFloats(pix []float64, width, height int) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := pix[y*width+x]
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			mat.SetUCharAt(y, x, uint8(v+0.5))
		}
	}
	return mat
}

// WriteImage encodes a Mat to path, choosing the codec from the extension.
func WriteImage(path string, mat gocv.Mat) error {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".tif" || ext == ".tiff" {
		if gocv.IMWrite(path, mat) {
			return nil
		}
		return WriteTiff(path, mat)
	}

	if !gocv.IMWrite(path, mat) {
		return newImageLoadError("failed to write image", path)
	}
	return nil
}
