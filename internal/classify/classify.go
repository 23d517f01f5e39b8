package classify

import (
	"fmt"
	"image"
	"math"

	"visual-tracer/internal/diff"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	whitespaceBlankMean   = 250
	whitespaceContentMean = 245

	wideAspect    = 4.0
	narrowAspect  = 0.25
	lowVarianceSD = 20

	minShiftCropSize = 20
	shiftPeakCorr    = 0.6
	minShiftPx       = 2

	outerThirdMaxSD  = 10
	middleThirdMinSD = 25

	colorStyleSSIM  = 0.90
	textEdgeDensity = 0.05
)

// Classify assigns a category to a difference region given the reference and
// test crops. Rules run in a fixed priority order and the first match wins;
// the detail string carries the measurement that triggered the rule.
func Classify(refCrop, testCrop gocv.Mat) (Category, string) {
	h, w := refCrop.Rows(), refCrop.Cols()
	if h == 0 || w == 0 || testCrop.Rows() == 0 || testCrop.Cols() == 0 {
		return CategoryLayoutMismatch, ""
	}

	refGray := toGray(refCrop)
	defer refGray.Close()
	testGray := toGray(testCrop)
	defer testGray.Close()

	// 1. Text line counts: a run of content rows in the horizontal
	// projection is one line; a mismatch means content was added or removed.
	refLines := countTextLines(refGray)
	testLines := countTextLines(testGray)
	if refLines > testLines {
		return CategoryMissingContent, fmt.Sprintf("%d text lines in reference, %d in test", refLines, testLines)
	}
	if testLines > refLines {
		return CategoryExtraContent, fmt.Sprintf("%d text lines in reference, %d in test", refLines, testLines)
	}

	// 2. Whitespace swapped for content (or the reverse).
	refMean := refGray.Mean().Val1
	testMean := testGray.Mean().Val1
	if refMean > whitespaceBlankMean && testMean < whitespaceContentMean {
		return CategoryExtraElement, "reference is blank, test has content"
	}
	if refMean < whitespaceContentMean && testMean > whitespaceBlankMean {
		return CategoryMissingElement, "reference has content, test is blank"
	}

	// 3. Spacing strips: a wide flat band is a gap between stacked
	// sections, a narrow one a gap between side-by-side elements.
	aspect := float64(w) / float64(h)
	if aspect > wideAspect {
		if grayStdDev(refGray) < lowVarianceSD || grayStdDev(testGray) < lowVarianceSD {
			return CategorySectionSpacing, fmt.Sprintf("height: %dpx", h)
		}
	}
	if aspect < narrowAspect {
		if grayStdDev(refGray) < lowVarianceSD || grayStdDev(testGray) < lowVarianceSD {
			return CategoryColumnSpacing, fmt.Sprintf("width: %dpx", w)
		}
	}

	// 4. Same content, displaced vertically.
	if h > minShiftCropSize && w > minShiftCropSize {
		if shift, peak, ok := projectionShift(refGray, testGray); ok {
			if peak > shiftPeakCorr && abs(shift) > minShiftPx {
				return CategorySpacingMismatch, fmt.Sprintf("~%dpx shift", abs(shift))
			}
		}
	}

	// 5. Uniform outer third with busy middle: padding or margin changed.
	if h >= 3 {
		if category, detail, ok := paddingThirds(refGray); ok {
			return category, detail
		}
	}

	// 6. Structure intact but pixels differ: a color or style change.
	score, dissim := diff.SSIM(refGray, testGray)
	dissim.Close()
	if score > colorStyleSSIM {
		return CategoryColorStyle, colorShiftDetail(refCrop, testCrop)
	}

	// 7. Busy reference crop without any earlier match: text-ish content.
	if density := edgeDensity(refGray); density > textEdgeDensity {
		return CategoryTextContent, fmt.Sprintf("edge density %.1f%%", density*100)
	}

	return CategoryLayoutMismatch, ""
}

// projectionShift cross-correlates the zero-mean, L2-normalized row profiles
// of both crops and returns the displacement of peak correlation.
func projectionShift(refGray, testGray gocv.Mat) (shift int, peak float64, ok bool) {
	p1 := rowMeans(refGray)
	p2 := rowMeans(testGray)
	if len(p1) != len(p2) || len(p1) == 0 {
		return 0, 0, false
	}

	floats.AddConst(-stat.Mean(p1, nil), p1)
	floats.AddConst(-stat.Mean(p2, nil), p2)

	n1 := floats.Norm(p1, 2)
	n2 := floats.Norm(p2, 2)
	if n1 == 0 || n2 == 0 {
		return 0, 0, false
	}
	floats.Scale(1/n1, p1)
	floats.Scale(1/n2, p2)

	n := len(p1)
	peak = math.Inf(-1)
	for lag := -(n - 1); lag <= n-1; lag++ {
		var sum float64
		for i := 0; i < n; i++ {
			j := i - lag
			if j >= 0 && j < n {
				sum += p1[i] * p2[j]
			}
		}
		if sum > peak {
			peak = sum
			shift = lag
		}
	}
	return shift, peak, true
}

// paddingThirds splits the reference crop into horizontal thirds. Integer
// division assigns leftover boundary rows to the middle band. A flat outer
// third against a busy middle means padding was added or removed.
func paddingThirds(refGray gocv.Mat) (Category, string, bool) {
	h, w := refGray.Rows(), refGray.Cols()
	thirdH := h / 3

	top := refGray.Region(image.Rect(0, 0, w, thirdH))
	defer top.Close()
	bottom := refGray.Region(image.Rect(0, h-thirdH, w, h))
	defer bottom.Close()
	middle := refGray.Region(image.Rect(0, thirdH, w, h-thirdH))
	defer middle.Close()

	topSD := grayStdDev(top)
	bottomSD := grayStdDev(bottom)
	middleSD := grayStdDev(middle)

	if (topSD < outerThirdMaxSD || bottomSD < outerThirdMaxSD) && middleSD > middleThirdMinSD {
		uniform := "top"
		if bottomSD < topSD {
			uniform = "bottom"
		}
		return CategoryPaddingMargin, fmt.Sprintf("%s band uniform", uniform), true
	}
	return "", "", false
}

// colorShiftDetail reports the perceptual distance between the average
// colors of the two crops.
func colorShiftDetail(refCrop, testCrop gocv.Mat) string {
	refAvg := averageColor(refCrop)
	testAvg := averageColor(testCrop)
	return fmt.Sprintf("average color deltaE %.1f", refAvg.DistanceLab(testAvg))
}

// averageColor reads the mean BGR of a crop as a colorful.Color.
func averageColor(crop gocv.Mat) colorful.Color {
	mean := crop.Mean()
	if crop.Channels() == 1 {
		v := mean.Val1 / 255
		return colorful.Color{R: v, G: v, B: v}
	}
	return colorful.Color{R: mean.Val3 / 255, G: mean.Val2 / 255, B: mean.Val1 / 255}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
