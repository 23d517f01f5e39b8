package alignment

import (
	"testing"

	"visual-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCorrespondences(tr geometry.AffineTransform) ([]geometry.Point2D, []geometry.Point2D) {
	src := []geometry.Point2D{
		{X: 10, Y: 20}, {X: 300, Y: 40}, {X: 150, Y: 250},
		{X: 80, Y: 400}, {X: 420, Y: 380}, {X: 500, Y: 90},
		{X: 35, Y: 160}, {X: 260, Y: 310}, {X: 390, Y: 200},
		{X: 470, Y: 440},
	}
	dst := make([]geometry.Point2D, len(src))
	for i, p := range src {
		dst[i] = tr.Apply(p)
	}
	return src, dst
}

func TestEstimateSimilarityRANSAC_RecoversKnownTransform(t *testing.T) {
	want := geometry.Similarity(1.05, 12, -7)
	src, dst := makeCorrespondences(want)

	got, inliers, err := EstimateSimilarityRANSAC(src, dst, 500, 3.0)
	require.NoError(t, err)

	assert.Len(t, inliers, len(src))
	assert.InDelta(t, want.A, got.A, 1e-6)
	assert.InDelta(t, 0, got.B, 1e-6)
	assert.InDelta(t, want.TX, got.TX, 1e-4)
	assert.InDelta(t, want.TY, got.TY, 1e-4)
}

func TestEstimateSimilarityRANSAC_IgnoresOutliers(t *testing.T) {
	want := geometry.Similarity(1.0, 25, 40)
	src, dst := makeCorrespondences(want)

	// Corrupt three correspondences well past the inlier threshold.
	dst[1].X += 120
	dst[4].Y -= 200
	dst[7].X -= 90

	got, inliers, err := EstimateSimilarityRANSAC(src, dst, 1000, 3.0)
	require.NoError(t, err)

	assert.Len(t, inliers, len(src)-3)
	assert.NotContains(t, inliers, 1)
	assert.NotContains(t, inliers, 4)
	assert.NotContains(t, inliers, 7)
	assert.InDelta(t, want.TX, got.TX, 1e-4)
	assert.InDelta(t, want.TY, got.TY, 1e-4)
}

func TestEstimateSimilarityRANSAC_Deterministic(t *testing.T) {
	want := geometry.Similarity(0.97, -14, 6)
	src, dst := makeCorrespondences(want)
	dst[3].X += 75

	first, firstInliers, err := EstimateSimilarityRANSAC(src, dst, 800, 3.0)
	require.NoError(t, err)
	second, secondInliers, err := EstimateSimilarityRANSAC(src, dst, 800, 3.0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstInliers, secondInliers)
}

func TestEstimateSimilarityRANSAC_RejectsShortInput(t *testing.T) {
	_, _, err := EstimateSimilarityRANSAC(
		[]geometry.Point2D{{X: 1, Y: 1}},
		[]geometry.Point2D{{X: 2, Y: 2}},
		100, 3.0)
	assert.Error(t, err)

	_, _, err = EstimateSimilarityRANSAC(
		[]geometry.Point2D{{X: 1, Y: 1}, {X: 2, Y: 2}},
		[]geometry.Point2D{{X: 1, Y: 1}},
		100, 3.0)
	assert.Error(t, err)
}

func TestAlignmentError(t *testing.T) {
	tr := geometry.Similarity(1, 3, 4)
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 10}}
	dst := []geometry.Point2D{{X: 3, Y: 4}, {X: 13, Y: 14}}

	assert.InDelta(t, 0, AlignmentError(src, dst, tr), 1e-9)

	dst[0].X += 2
	assert.InDelta(t, 1.0, AlignmentError(src, dst, tr), 1e-9)
}

func TestTransform_Apply(t *testing.T) {
	tr := Transform{Scale: 2, TX: 5, TY: -3}
	p := tr.Apply(geometry.Point2D{X: 4, Y: 6})
	assert.InDelta(t, 13, p.X, 1e-9)
	assert.InDelta(t, 9, p.Y, 1e-9)
}
