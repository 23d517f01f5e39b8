package classify

import (
	"math"

	"gocv.io/x/gocv"
)

// toGray returns a single-channel copy of the crop. The caller owns the
// returned Mat.
func toGray(img gocv.Mat) gocv.Mat {
	if img.Channels() == 1 {
		return img.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}

// grayStdDev computes the standard deviation of a grayscale crop.
func grayStdDev(gray gocv.Mat) float64 {
	rows, cols := gray.Rows(), gray.Cols()
	n := rows * cols
	if n == 0 {
		return 0
	}

	var sum float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			sum += float64(gray.GetUCharAt(y, x))
		}
	}
	mean := sum / float64(n)

	var variance float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			d := float64(gray.GetUCharAt(y, x)) - mean
			variance += d * d
		}
	}
	return math.Sqrt(variance / float64(n))
}

// rowMeans returns the mean intensity of every row (the horizontal
// projection profile of the crop).
func rowMeans(gray gocv.Mat) []float64 {
	rows, cols := gray.Rows(), gray.Cols()
	means := make([]float64, rows)
	if cols == 0 {
		return means
	}
	for y := 0; y < rows; y++ {
		var sum float64
		for x := 0; x < cols; x++ {
			sum += float64(gray.GetUCharAt(y, x))
		}
		means[y] = sum / float64(cols)
	}
	return means
}

// countTextLines estimates the number of text lines in a crop. The crop is
// inverse-binarized with Otsu (content becomes white on black), rows whose
// pixel mass exceeds 2% of the theoretical maximum count as content rows,
// and each contiguous run of content rows is one line.
func countTextLines(gray gocv.Mat) int {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)

	rows, cols := binary.Rows(), binary.Cols()
	if rows == 0 || cols == 0 {
		return 0
	}

	cutoff := float64(cols) * 255 * 0.02

	lines := 0
	inLine := false
	anyContent := false
	for y := 0; y < rows; y++ {
		var sum float64
		for x := 0; x < cols; x++ {
			sum += float64(binary.GetUCharAt(y, x))
		}
		if sum > 0 {
			anyContent = true
		}
		if sum > cutoff {
			if !inLine {
				lines++
				inLine = true
			}
		} else {
			inLine = false
		}
	}

	if !anyContent {
		return 0
	}
	return lines
}

// edgeDensity returns the fraction of pixels Canny marks as edges.
func edgeDensity(gray gocv.Mat) float64 {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	total := edges.Rows() * edges.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(edges)) / float64(total)
}
