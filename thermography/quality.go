package thermography

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"thermopipe/imageproc"
)

// Scorer assigns a no-reference quality score to one image. Lower scores
// mean better quality; the IQA stage compares scores against a threshold.
type Scorer interface {
	Score(path string) (float64, error)
}

// BrisqueScorer scores images by the variance of their MSCN (mean
// subtracted contrast normalized) coefficients. Pristine natural images
// have MSCN variance close to one; blur and noise push it away in either
// direction. The score maps that deviation onto the usual 0..100 BRISQUE
// range, lower is better.
type BrisqueScorer struct {
	registry *imageproc.ImageLoaderRegistry
}

// NewBrisqueScorer creates a scorer reading through the given loader
// registry.
func NewBrisqueScorer(registry *imageproc.ImageLoaderRegistry) *BrisqueScorer {
	return &BrisqueScorer{registry: registry}
}

// Score loads the image in grayscale and computes its quality score.
func (s *BrisqueScorer) Score(path string) (float64, error) {
	img, err := s.registry.LoadImage(path)
	if err != nil {
		return 0, err
	}
	defer img.Close()

	f32 := gocv.NewMat()
	defer f32.Close()
	img.ConvertTo(&f32, gocv.MatTypeCV32F)

	// Local mean and local mean of squares via a 7x7 Gaussian window, the
	// window used by the reference BRISQUE implementation.
	mu := gocv.NewMat()
	defer mu.Close()
	gocv.GaussianBlur(f32, &mu, image.Pt(7, 7), 1.166, 1.166, gocv.BorderDefault)

	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(f32, f32, &sq)

	muSq := gocv.NewMat()
	defer muSq.Close()
	gocv.GaussianBlur(sq, &muSq, image.Pt(7, 7), 1.166, 1.166, gocv.BorderDefault)

	rows, cols := f32.Rows(), f32.Cols()
	if rows == 0 || cols == 0 {
		return 0, fmt.Errorf("image has no pixels: %s", path)
	}

	var sum, sumSq float64
	n := float64(rows * cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			pixel := float64(f32.GetFloatAt(y, x))
			mean := float64(mu.GetFloatAt(y, x))
			variance := float64(muSq.GetFloatAt(y, x)) - mean*mean
			if variance < 0 {
				variance = 0
			}
			mscn := (pixel - mean) / (math.Sqrt(variance) + 1)
			sum += mscn
			sumSq += mscn * mscn
		}
	}

	mean := sum / n
	mscnVar := sumSq/n - mean*mean

	score := 100 * math.Abs(1-mscnVar)
	if score > 100 {
		score = 100
	}
	return score, nil
}
