package diff

import (
	"image"
	"image/color"
	"sort"

	"visual-tracer/pkg/geometry"

	"gocv.io/x/gocv"
)

// DetectRegions finds all candidate difference regions in a difference map.
// The binarization threshold comes from the map's own histogram (Otsu), so
// detection itself carries no tunable constant; sensitivity only enters
// through the dilation iteration count and the minimum area.
func DetectRegions(diffMap gocv.Mat, minArea, dilateIterations int) []geometry.RectInt {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(diffMap, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)

	binary := gocv.NewMat()
	gocv.Threshold(blurred, &binary, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	for i := 0; i < dilateIterations; i++ {
		dilated := gocv.NewMat()
		gocv.Dilate(binary, &dilated, kernel)
		binary.Close()
		binary = dilated
	}
	defer binary.Close()

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []geometry.RectInt
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		region := geometry.RectInt{
			X:      rect.Min.X,
			Y:      rect.Min.Y,
			Width:  rect.Dx(),
			Height: rect.Dy(),
		}
		if region.Area() >= minArea {
			regions = append(regions, region)
		}
	}

	// Top-to-bottom, left-to-right: deterministic output order.
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Y != regions[j].Y {
			return regions[i].Y < regions[j].Y
		}
		return regions[i].X < regions[j].X
	})

	return regions
}

// Severity returns the mean difference-map intensity inside a region's
// bounding box.
func Severity(diffMap gocv.Mat, region geometry.RectInt) float64 {
	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	view := diffMap.Region(rect)
	defer view.Close()
	return view.Mean().Val1
}

// FilterBySeverity keeps only regions whose mean difference intensity
// reaches severityMin, returning the survivors alongside their severities.
func FilterBySeverity(diffMap gocv.Mat, regions []geometry.RectInt, severityMin int) ([]geometry.RectInt, []float64) {
	var kept []geometry.RectInt
	var severities []float64
	for _, region := range regions {
		if region.Empty() {
			continue
		}
		severity := Severity(diffMap, region)
		if severity >= float64(severityMin) {
			kept = append(kept, region)
			severities = append(severities, severity)
		}
	}
	return kept, severities
}

// ChangedPixelMask thresholds the difference map at highlightThreshold and
// masks it down to the given regions. The result is the set of pixels
// counted as "changed" and the area painted by the report overlay.
func ChangedPixelMask(diffMap gocv.Mat, regions []geometry.RectInt, highlightThreshold int) gocv.Mat {
	mask := gocv.NewMat()
	gocv.Threshold(diffMap, &mask, float32(highlightThreshold), 255, gocv.ThresholdBinary)

	regionMask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		diffMap.Rows(), diffMap.Cols(), gocv.MatTypeCV8U)
	defer regionMask.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, region := range regions {
		rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
		gocv.Rectangle(&regionMask, rect, white, -1)
	}

	final := gocv.NewMat()
	gocv.BitwiseAnd(mask, regionMask, &final)
	mask.Close()
	return final
}
