// Package alignment registers a freshly captured page image against a
// reference image before the two are diffed. Web screenshots are axis
// aligned, so the recovered transform is restricted to translation plus a
// uniform scale close to 1; anything outside that envelope falls back to a
// plain resize.
package alignment

import (
	"image"
	"image/color"

	"visual-tracer/pkg/geometry"

	"gocv.io/x/gocv"
)

const (
	maxFeatures    = 5000
	ratioCutoff    = 0.75
	minKeypoints   = 10
	minGoodMatches = 8

	ransacIterations = 2000
	inlierThreshold  = 5.0

	// Screenshots of the same page render at nearly identical size; a fit
	// outside these bounds means the matches were garbage.
	minScale = 0.9
	maxScale = 1.1
)

// Align warps the test image into the reference image's coordinate frame.
// On success the returned transform is non-nil. Every failure path (too few
// keypoints, too few matches, no consensus, scale out of bounds) degrades to
// resizing the test image to the reference dimensions with a nil transform;
// alignment is a best-effort refinement, never an error.
func Align(reference, test gocv.Mat) (gocv.Mat, *Transform) {
	refGray := gocv.NewMat()
	defer refGray.Close()
	testGray := gocv.NewMat()
	defer testGray.Close()
	gocv.CvtColor(reference, &refGray, gocv.ColorBGRToGray)
	gocv.CvtColor(test, &testGray, gocv.ColorBGRToGray)

	orb := gocv.NewORBWithParams(maxFeatures, 1.2, 8, 15, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	refKps, refDesc := orb.DetectAndCompute(refGray, mask)
	defer refDesc.Close()
	testKps, testDesc := orb.DetectAndCompute(testGray, mask)
	defer testDesc.Close()

	if refDesc.Empty() || testDesc.Empty() || len(refKps) < minKeypoints || len(testKps) < minKeypoints {
		return resizeToReference(reference, test), nil
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()
	matches := matcher.KnnMatch(refDesc, testDesc, 2)

	// Lowe's ratio test rejects ambiguous matches.
	var refPts, testPts []geometry.Point2D
	for _, pair := range matches {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < ratioCutoff*pair[1].Distance {
			refKp := refKps[pair[0].QueryIdx]
			testKp := testKps[pair[0].TrainIdx]
			refPts = append(refPts, geometry.NewPoint2D(refKp.X, refKp.Y))
			testPts = append(testPts, geometry.NewPoint2D(testKp.X, testKp.Y))
		}
	}

	if len(refPts) < minGoodMatches {
		return resizeToReference(reference, test), nil
	}

	// Fit test -> reference, allowing rotation during the fit so rotated
	// outlier geometry doesn't distort the consensus.
	fitted, inlierIdx, err := EstimateSimilarityRANSAC(testPts, refPts, ransacIterations, inlierThreshold)
	if err != nil {
		return resizeToReference(reference, test), nil
	}

	scale := fitted.UniformScale()
	if scale < minScale || scale > maxScale {
		return resizeToReference(reference, test), nil
	}

	// Screenshots are never rotated; drop the rotation term so noisy matches
	// cannot introduce a perspective-like warp.
	corrected := fitted.ZeroRotation()

	inlierSrc := make([]geometry.Point2D, len(inlierIdx))
	inlierDst := make([]geometry.Point2D, len(inlierIdx))
	for i, idx := range inlierIdx {
		inlierSrc[i] = testPts[idx]
		inlierDst[i] = refPts[idx]
	}
	transform := &Transform{
		Scale:     corrected.A,
		TX:        corrected.TX,
		TY:        corrected.TY,
		MeanError: AlignmentError(inlierSrc, inlierDst, corrected),
	}

	aligned := warpSimilarity(test, corrected, reference.Cols(), reference.Rows())
	return aligned, transform
}

// warpSimilarity applies a 2x3 transform with bilinear interpolation.
func warpSimilarity(src gocv.Mat, transform geometry.AffineTransform, width, height int) gocv.Mat {
	transformMat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer transformMat.Close()
	m := transform.ToMatrix()
	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			transformMat.SetDoubleAt(row, col, m[row][col])
		}
	}

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, transformMat, image.Point{X: width, Y: height},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return dst
}

func resizeToReference(reference, test gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(test, &dst, image.Point{X: reference.Cols(), Y: reference.Rows()}, 0, 0, gocv.InterpolationLinear)
	return dst
}
