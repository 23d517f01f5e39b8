package compare

import (
	"testing"

	"visual-tracer/internal/classify"
	"visual-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocv.io/x/gocv"
)

// whiteBGR builds a white 3-channel mat.
func whiteBGR(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0),
		height, width, gocv.MatTypeCV8UC3)
}

// paintBlack fills a rectangle of a BGR mat with black.
func paintBlack(mat *gocv.Mat, x0, y0, w, h int) {
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			mat.SetUCharAt(y, x*3+0, 0)
			mat.SetUCharAt(y, x*3+1, 0)
			mat.SetUCharAt(y, x*3+2, 0)
		}
	}
}

func TestCompareImages_InvalidInput(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	valid := whiteBGR(50, 50)
	defer valid.Close()

	_, err := CompareImages(empty, valid, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CompareImages(valid, empty, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompareImages_IdenticalImages(t *testing.T) {
	ref := whiteBGR(200, 200)
	defer ref.Close()
	paintBlack(&ref, 40, 40, 30, 30)
	paintBlack(&ref, 120, 100, 50, 20)
	test := ref.Clone()
	defer test.Close()

	result, err := CompareImages(ref, test, DefaultOptions())
	require.NoError(t, err)

	assert.Greater(t, result.OverallSimilarity, 0.99)
	assert.Less(t, result.ChangeRatio, 0.01)
	assert.Empty(t, result.Issues)
	assert.GreaterOrEqual(t, result.AlignmentError, 0.0)
	assert.Less(t, result.AlignmentError, 5.0)
}

func TestCompareImages_DetectsDifference(t *testing.T) {
	ref := whiteBGR(200, 200)
	defer ref.Close()
	test := whiteBGR(200, 200)
	defer test.Close()
	paintBlack(&test, 80, 80, 40, 40)

	result, err := CompareImages(ref, test, DefaultOptions())
	require.NoError(t, err)

	require.NotEmpty(t, result.Issues)
	assert.Less(t, result.OverallSimilarity, 0.99)
	assert.Greater(t, result.ChangeRatio, 0.0)

	issue := result.Issues[0]
	assert.InDelta(t, 80, issue.X, 10)
	assert.InDelta(t, 80, issue.Y, 10)
	assert.Greater(t, issue.Severity, 0.0)
	assert.NotEmpty(t, issue.Location)
}

// Raising sensitivity may add issues but must never remove any.
func TestCompareImages_MonotonicInSensitivity(t *testing.T) {
	ref := whiteBGR(240, 240)
	defer ref.Close()
	test := whiteBGR(240, 240)
	defer test.Close()
	paintBlack(&test, 30, 30, 40, 40)
	paintBlack(&test, 150, 160, 50, 30)

	prev := -1
	for _, sensitivity := range []int{10, 30, 50, 70, 90, 100} {
		opts := DefaultOptions()
		opts.Sensitivity = sensitivity
		result, err := CompareImages(ref, test, opts)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(result.Issues), prev, "sensitivity %d", sensitivity)
		prev = len(result.Issues)
	}
	assert.Greater(t, prev, 0)
}

func TestCompareImages_Deterministic(t *testing.T) {
	ref := whiteBGR(200, 200)
	defer ref.Close()
	test := whiteBGR(200, 200)
	defer test.Close()
	paintBlack(&test, 60, 50, 45, 35)

	first, err := CompareImages(ref, test, DefaultOptions())
	require.NoError(t, err)
	second, err := CompareImages(ref, test, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, first.OverallSimilarity, second.OverallSimilarity)
	assert.Equal(t, first.ChangeRatio, second.ChangeRatio)
	assert.Equal(t, first.Issues, second.Issues)
}

// Filters drop issues from the report but must not touch change statistics.
func TestCompareImages_FiltersArePresentationOnly(t *testing.T) {
	ref := whiteBGR(200, 200)
	defer ref.Close()
	test := whiteBGR(200, 200)
	defer test.Close()
	paintBlack(&test, 80, 80, 40, 40)

	all, err := CompareImages(ref, test, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, all.Issues)

	// A black block appearing on a blank background reads as added content,
	// so a layout-only filter suppresses it.
	opts := DefaultOptions()
	opts.Filters = classify.FilterSet{classify.FilterLayoutStructure: true}
	filtered, err := CompareImages(ref, test, opts)
	require.NoError(t, err)

	assert.Empty(t, filtered.Issues)
	assert.Equal(t, all.ChangeRatio, filtered.ChangeRatio)
	assert.Equal(t, all.OverallSimilarity, filtered.OverallSimilarity)
}

func TestCompareImages_KeepArtifacts(t *testing.T) {
	ref := whiteBGR(150, 150)
	defer ref.Close()
	test := whiteBGR(150, 150)
	defer test.Close()
	paintBlack(&test, 50, 50, 40, 40)

	opts := DefaultOptions()
	opts.KeepArtifacts = true
	result, err := CompareImages(ref, test, opts)
	require.NoError(t, err)
	require.NotNil(t, result.Artifacts)
	defer result.Artifacts.Close()

	assert.False(t, result.Artifacts.DiffMap.Empty())
	assert.False(t, result.Artifacts.ChangedMask.Empty())
	assert.Equal(t, result.Artifacts.RefCrop.Rows(), result.Artifacts.TestCrop.Rows())
	assert.NotEmpty(t, result.Artifacts.Retained)
}

func TestCompareImages_MismatchedSizesFallBack(t *testing.T) {
	ref := whiteBGR(200, 160)
	defer ref.Close()
	test := whiteBGR(180, 140)
	defer test.Close()

	result, err := CompareImages(ref, test, DefaultOptions())
	require.NoError(t, err)

	assert.False(t, result.AlignmentUsed)
	assert.Zero(t, result.AlignmentError)
	assert.Greater(t, result.OverallSimilarity, 0.99)
}

func TestLocationLabel(t *testing.T) {
	cases := []struct {
		name   string
		region geometry.RectInt
		want   string
	}{
		{"top left corner", geometry.RectInt{X: 0, Y: 0, Width: 10, Height: 10}, "Top-Left"},
		{"dead center", geometry.RectInt{X: 90, Y: 90, Width: 20, Height: 20}, "Center"},
		{"bottom right corner", geometry.RectInt{X: 180, Y: 180, Width: 15, Height: 15}, "Bottom-Right"},
		{"top stripe", geometry.RectInt{X: 0, Y: 0, Width: 200, Height: 10}, "Top-Center"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, locationLabel(tc.region, 200, 200))
		})
	}
}
