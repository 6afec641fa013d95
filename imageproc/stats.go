package imageproc

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Numeric kernels for the preprocessing steps. They operate on raw float64
// pixel arrays so they stay independent of any image library.

// RescaleMidpoint is the output value used when an image has zero variance:
// the midpoint of the 8-bit range.
const RescaleMidpoint = 127.5

// Quartiles returns the first and third quartile of the pixel values using
// linear interpolation between adjacent samples.
func Quartiles(pix []float64) (q1, q3 float64) {
	sorted := make([]float64, len(pix))
	copy(sorted, pix)
	sort.Float64s(sorted)

	q1 = stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 = stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	return q1, q3
}

// ClipIQR clamps intensity outliers in place: values above Q3+1.5*IQR are
// pulled down to that bound, values at or below Q1-1.5*IQR are pulled up.
func ClipIQR(pix []float64) {
	if len(pix) == 0 {
		return
	}

	q1, q3 := Quartiles(pix)
	iqr := q3 - q1
	hi := q3 + 1.5*iqr
	lo := q1 - 1.5*iqr

	for i, v := range pix {
		if v > hi {
			pix[i] = hi
		} else if v <= lo {
			pix[i] = lo
		}
	}
}

// RescaleMeanStd linearly maps the range [mean-2*std, mean+2*std] onto
// [0,255] in place. Values outside the input range saturate at the
// endpoints. A constant image (std == 0) maps to RescaleMidpoint, avoiding
// the division by zero.
func RescaleMeanStd(pix []float64) {
	if len(pix) == 0 {
		return
	}

	mean := stat.Mean(pix, nil)
	std := stat.PopStdDev(pix, nil)
	if std == 0 {
		for i := range pix {
			pix[i] = RescaleMidpoint
		}
		return
	}

	lo := mean - 2*std
	hi := mean + 2*std
	scale := 255 / (hi - lo)

	for i, v := range pix {
		switch {
		case v <= lo:
			pix[i] = 0
		case v >= hi:
			pix[i] = 255
		default:
			pix[i] = (v - lo) * scale
		}
	}
}
