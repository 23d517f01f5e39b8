package alignment

import (
	"fmt"
	"math"
	"math/rand"

	"visual-tracer/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// Transform is the translation + uniform-scale mapping from test-image to
// reference-image coordinates. Rotation is always zero; a nil *Transform
// signals that alignment was abandoned and the caller resized instead.
type Transform struct {
	Scale float64 `json:"scale"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
	// MeanError is the mean reprojection error in pixels over the inlier
	// correspondences the transform was fit to.
	MeanError float64 `json:"mean_error"`
}

// Matrix returns the transform as a 2x3 affine matrix.
func (t Transform) Matrix() geometry.AffineTransform {
	return geometry.Similarity(t.Scale, t.TX, t.TY)
}

// Apply maps a point from test-image to reference-image coordinates.
func (t Transform) Apply(p geometry.Point2D) geometry.Point2D {
	return t.Matrix().Apply(p)
}

// EstimateSimilarityRANSAC fits a similarity transform (rotation + uniform
// scale + translation) mapping src points onto dst points. Samples are pairs
// of correspondences; the consensus set is refit with least squares.
//
// The RNG is seeded with a constant so identical inputs always produce the
// identical transform.
func EstimateSimilarityRANSAC(srcPoints, dstPoints []geometry.Point2D, iterations int, threshold float64) (geometry.AffineTransform, []int, error) {
	if len(srcPoints) != len(dstPoints) || len(srcPoints) < 2 {
		return geometry.AffineTransform{}, nil, fmt.Errorf("invalid point sets")
	}

	n := len(srcPoints)
	rng := rand.New(rand.NewSource(1))
	bestInliers := []int{}

	for iter := 0; iter < iterations; iter++ {
		indices := rng.Perm(n)[:2]
		i0, i1 := indices[0], indices[1]

		transform, err := computeSimilarityFrom2(srcPoints[i0], srcPoints[i1], dstPoints[i0], dstPoints[i1])
		if err != nil {
			continue
		}

		var inliers []int
		for i := range srcPoints {
			transformed := transform.Apply(srcPoints[i])
			if transformed.Distance(dstPoints[i]) < threshold {
				inliers = append(inliers, i)
			}
		}

		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
		}
	}

	if len(bestInliers) < 2 {
		return geometry.AffineTransform{}, nil, fmt.Errorf("RANSAC failed to find enough inliers")
	}

	// Recompute using all inliers
	inlierSrc := make([]geometry.Point2D, len(bestInliers))
	inlierDst := make([]geometry.Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inlierSrc[i] = srcPoints[idx]
		inlierDst[i] = dstPoints[idx]
	}

	finalTransform, err := computeSimilarityLeastSquares(inlierSrc, inlierDst)
	if err != nil {
		return geometry.AffineTransform{}, nil, fmt.Errorf("refit inliers: %w", err)
	}

	return finalTransform, bestInliers, nil
}

// computeSimilarityFrom2 computes a similarity transform from 2 point pairs.
func computeSimilarityFrom2(s0, s1, d0, d1 geometry.Point2D) (geometry.AffineTransform, error) {
	sx, sy := s1.X-s0.X, s1.Y-s0.Y
	dx, dy := d1.X-d0.X, d1.Y-d0.Y

	srcLen := math.Sqrt(sx*sx + sy*sy)
	dstLen := math.Sqrt(dx*dx + dy*dy)
	if srcLen < 0.001 || dstLen < 0.001 {
		return geometry.AffineTransform{}, fmt.Errorf("degenerate points")
	}

	scale := dstLen / srcLen
	theta := math.Atan2(dy, dx) - math.Atan2(sy, sx)

	a := scale * math.Cos(theta)
	b := scale * math.Sin(theta)

	// Translation: d0 = S * s0 + t  =>  t = d0 - S * s0
	tx := d0.X - (a*s0.X - b*s0.Y)
	ty := d0.Y - (b*s0.X + a*s0.Y)

	return geometry.AffineTransform{
		A: a, B: -b, TX: tx,
		C: b, D: a, TY: ty,
	}, nil
}

// computeSimilarityLeastSquares solves the 4-parameter similarity
// [a -b tx; b a ty] over all point pairs using QR decomposition.
func computeSimilarityLeastSquares(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	n := len(src)
	if n < 2 {
		return geometry.AffineTransform{}, fmt.Errorf("need at least 2 points")
	}

	// x' = a*x - b*y + tx
	// y' = b*x + a*y + ty
	A := mat.NewDense(n*2, 4, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, -y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, dst[i].X)

		A.Set(i*2+1, 0, y)
		A.Set(i*2+1, 1, x)
		A.Set(i*2+1, 3, 1)
		B.SetVec(i*2+1, dst[i].Y)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	a := params.AtVec(0)
	b := params.AtVec(1)
	return geometry.AffineTransform{
		A: a, B: -b, TX: params.AtVec(2),
		C: b, D: a, TY: params.AtVec(3),
	}, nil
}

// AlignmentError returns the mean reprojection error of a transform over the
// given correspondences.
func AlignmentError(srcPoints, dstPoints []geometry.Point2D, transform geometry.AffineTransform) float64 {
	if len(srcPoints) != len(dstPoints) || len(srcPoints) == 0 {
		return math.Inf(1)
	}

	var total float64
	for i := range srcPoints {
		transformed := transform.Apply(srcPoints[i])
		total += transformed.Distance(dstPoints[i])
	}

	return total / float64(len(srcPoints))
}
