// Package compare runs the full visual comparison pipeline: alignment,
// overlap cropping, difference mapping, region detection/filtering and
// classification. It is a pure function of its inputs; no state survives
// between calls and no stage touches the network or filesystem.
package compare

import (
	"errors"
	"fmt"
	"image"

	"visual-tracer/internal/alignment"
	"visual-tracer/internal/classify"
	"visual-tracer/internal/diff"
	"visual-tracer/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrInvalidInput marks unusable input buffers (empty or zero-dimension).
var ErrInvalidInput = errors.New("invalid input image")

// Options configures a single comparison call.
type Options struct {
	// Sensitivity tunes how many regions are reported, 0..100. Higher
	// sensitivity never reports fewer issues than a lower one.
	Sensitivity int
	// Filters selects which category buckets appear in the report. Filters
	// are applied after detection, so they never affect change statistics.
	Filters classify.FilterSet
	// KeepArtifacts retains the cropped images, difference map and changed
	// pixel mask on the result for report rendering. The caller must Close
	// the artifacts.
	KeepArtifacts bool
}

// DefaultOptions returns the standard comparison options.
func DefaultOptions() Options {
	return Options{
		Sensitivity: 50,
		Filters:     classify.AllFilters(),
	}
}

// Issue is one reportable difference region.
type Issue struct {
	X        int               `json:"x"`
	Y        int               `json:"y"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Category classify.Category `json:"category"`
	Detail   string            `json:"detail,omitempty"`
	Severity float64           `json:"severity"`
	Location string            `json:"location"`
}

// Result is the outcome of one comparison run.
type Result struct {
	// OverallSimilarity is the mean structural similarity of the cropped
	// pair, 0..1.
	OverallSimilarity float64 `json:"overall_similarity"`
	// ChangeRatio is the fraction of pixels flagged as differing inside
	// severity-retained regions, computed before presentation filtering.
	ChangeRatio float64 `json:"change_ratio"`
	Issues      []Issue `json:"issues"`
	// AlignmentUsed records whether keypoint alignment succeeded; false
	// means the test image was plainly resized. Degraded alignment is a
	// fact, not an error.
	AlignmentUsed bool `json:"alignment_used"`
	// AlignmentError is the fitted transform's mean reprojection error in
	// pixels. Zero when alignment fell back to a resize.
	AlignmentError float64 `json:"alignment_error,omitempty"`

	Artifacts *Artifacts `json:"-"`
}

// Artifacts are the pixel buffers a report renderer needs. Only populated
// when Options.KeepArtifacts is set.
type Artifacts struct {
	RefCrop     gocv.Mat
	TestCrop    gocv.Mat
	DiffMap     gocv.Mat
	ChangedMask gocv.Mat
	// Retained are the severity-filtered regions before presentation
	// filtering, in report order.
	Retained   []geometry.RectInt
	Thresholds diff.Thresholds
}

// Close releases the retained buffers.
func (a *Artifacts) Close() {
	a.RefCrop.Close()
	a.TestCrop.Close()
	a.DiffMap.Close()
	a.ChangedMask.Close()
}

// CompareImages compares a test capture against a reference image and
// returns the classified differences.
func CompareImages(reference, test gocv.Mat, opts Options) (*Result, error) {
	if reference.Empty() || test.Empty() ||
		reference.Rows() == 0 || reference.Cols() == 0 ||
		test.Rows() == 0 || test.Cols() == 0 {
		return nil, fmt.Errorf("%w: reference %dx%d, test %dx%d", ErrInvalidInput,
			reference.Cols(), reference.Rows(), test.Cols(), test.Rows())
	}
	if opts.Filters == nil {
		opts.Filters = classify.AllFilters()
	}

	testW, testH := test.Cols(), test.Rows()

	aligned, transform := alignment.Align(reference, test)
	refCrop, testCrop := alignment.OverlapCrop(reference, aligned, transform, testW, testH)
	aligned.Close()

	refCrop, testCrop = clampToCommonSize(refCrop, testCrop)

	refGray := gocv.NewMat()
	defer refGray.Close()
	testGray := gocv.NewMat()
	defer testGray.Close()
	gocv.CvtColor(refCrop, &refGray, gocv.ColorBGRToGray)
	gocv.CvtColor(testCrop, &testGray, gocv.ColorBGRToGray)

	score, diffMap := diff.SSIM(refGray, testGray)

	thresholds := diff.ThresholdsForSensitivity(opts.Sensitivity)
	candidates := diff.DetectRegions(diffMap, thresholds.MinArea, thresholds.DilateIterations)
	retained, severities := diff.FilterBySeverity(diffMap, candidates, thresholds.SeverityMin)

	changedMask := diff.ChangedPixelMask(diffMap, retained, thresholds.HighlightThreshold)
	totalPixels := diffMap.Rows() * diffMap.Cols()
	changeRatio := 0.0
	if totalPixels > 0 {
		changeRatio = float64(gocv.CountNonZero(changedMask)) / float64(totalPixels)
	}

	cropW, cropH := refCrop.Cols(), refCrop.Rows()
	issues := make([]Issue, 0, len(retained))
	for i, region := range retained {
		refView := refCrop.Region(regionRect(region))
		testView := testCrop.Region(regionRect(region))
		category, detail := classify.Classify(refView, testView)
		refView.Close()
		testView.Close()

		if !opts.Filters.Allows(category) {
			continue
		}

		issues = append(issues, Issue{
			X:        region.X,
			Y:        region.Y,
			Width:    region.Width,
			Height:   region.Height,
			Category: category,
			Detail:   detail,
			Severity: severities[i],
			Location: locationLabel(region, cropW, cropH),
		})
	}

	result := &Result{
		OverallSimilarity: score,
		ChangeRatio:       changeRatio,
		Issues:            issues,
		AlignmentUsed:     transform != nil,
	}
	if transform != nil {
		result.AlignmentError = transform.MeanError
	}

	if opts.KeepArtifacts {
		result.Artifacts = &Artifacts{
			RefCrop:     refCrop,
			TestCrop:    testCrop,
			DiffMap:     diffMap,
			ChangedMask: changedMask,
			Retained:    retained,
			Thresholds:  thresholds,
		}
	} else {
		refCrop.Close()
		testCrop.Close()
		diffMap.Close()
		changedMask.Close()
	}

	return result, nil
}

// clampToCommonSize trims both crops to their shared dimensions. Redundant
// when the overlap crop ran, but the resize fallback can be off by a pixel
// of rounding.
func clampToCommonSize(refCrop, testCrop gocv.Mat) (gocv.Mat, gocv.Mat) {
	h := min(refCrop.Rows(), testCrop.Rows())
	w := min(refCrop.Cols(), testCrop.Cols())
	if h == refCrop.Rows() && w == refCrop.Cols() &&
		h == testCrop.Rows() && w == testCrop.Cols() {
		return refCrop, testCrop
	}

	rect := image.Rect(0, 0, w, h)
	refView := refCrop.Region(rect)
	testView := testCrop.Region(rect)
	refOut := refView.Clone()
	testOut := testView.Clone()
	refView.Close()
	testView.Close()
	refCrop.Close()
	testCrop.Close()
	return refOut, testOut
}

func regionRect(r geometry.RectInt) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// locationLabel names where a region sits on the page, e.g. "Top-Left".
func locationLabel(r geometry.RectInt, totalW, totalH int) string {
	cw := float64(totalW) / 2
	ch := float64(totalH) / 2

	vertical := "Center"
	if float64(r.Y+r.Height) < ch*0.6 {
		vertical = "Top"
	} else if float64(r.Y) > ch*1.4 {
		vertical = "Bottom"
	}

	horizontal := "Center"
	if float64(r.X+r.Width) < cw*0.6 {
		horizontal = "Left"
	} else if float64(r.X) > cw*1.4 {
		horizontal = "Right"
	}

	if vertical == "Center" && horizontal == "Center" {
		return "Center"
	}
	return vertical + "-" + horizontal
}
