package alignment

import (
	"image"
	"math"

	"visual-tracer/pkg/geometry"

	"gocv.io/x/gocv"
)

// OverlapCrop restricts the comparison to the rectangle where both images
// carry real content. The corners of the original (pre-alignment) test image
// are mapped through the transform into reference space and intersected with
// the reference bounds; areas that exist in only one image would otherwise
// show up as spurious differences.
//
// With a nil transform both images already share the reference dimensions
// from the resize fallback and are returned uncropped. The returned Mats are
// always fresh clones owned by the caller.
func OverlapCrop(reference, alignedTest gocv.Mat, transform *Transform, testWidth, testHeight int) (gocv.Mat, gocv.Mat) {
	if transform == nil {
		return reference.Clone(), alignedTest.Clone()
	}

	w := float64(testWidth)
	h := float64(testHeight)
	corners := []geometry.Point2D{
		{X: 0, Y: 0},
		{X: w, Y: 0},
		{X: w, Y: h},
		{X: 0, Y: h},
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := transform.Apply(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	mapped := geometry.RectInt{
		X:      int(minX),
		Y:      int(minY),
		Width:  int(maxX) - int(minX),
		Height: int(maxY) - int(minY),
	}
	bounds := geometry.RectInt{Width: reference.Cols(), Height: reference.Rows()}
	overlap := mapped.Intersect(bounds)

	if overlap.Empty() {
		return reference.Clone(), alignedTest.Clone()
	}

	rect := image.Rect(overlap.X, overlap.Y, overlap.X+overlap.Width, overlap.Y+overlap.Height)

	refRegion := reference.Region(rect)
	defer refRegion.Close()
	testRegion := alignedTest.Region(rect)
	defer testRegion.Close()

	return refRegion.Clone(), testRegion.Clone()
}
