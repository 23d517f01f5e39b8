package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gocv.io/x/gocv"
)

// grayMat builds a single-channel mat filled with one value.
func grayMat(width, height int, value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, 0, 0, 0), height, width, gocv.MatTypeCV8U)
}

func noisyGrayMat(width, height int) gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
	seed := uint32(88172645)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			seed = seed*1664525 + 1013904223
			mat.SetUCharAt(y, x, uint8(seed>>24))
		}
	}
	return mat
}

func TestSSIM_IdenticalImages(t *testing.T) {
	a := noisyGrayMat(120, 90)
	defer a.Close()
	b := a.Clone()
	defer b.Close()

	score, diffMap := SSIM(a, b)
	defer diffMap.Close()

	assert.Greater(t, score, 0.99)
	assert.Less(t, diffMap.Mean().Val1, 1.0)
	assert.Equal(t, 90, diffMap.Rows())
	assert.Equal(t, 120, diffMap.Cols())
	assert.Equal(t, gocv.MatTypeCV8U, diffMap.Type())
}

func TestSSIM_OppositeImages(t *testing.T) {
	a := grayMat(100, 100, 0)
	defer a.Close()
	b := grayMat(100, 100, 255)
	defer b.Close()

	score, diffMap := SSIM(a, b)
	defer diffMap.Close()

	assert.Less(t, score, 0.05)
	assert.Greater(t, diffMap.Mean().Val1, 200.0)
}

func TestSSIM_LocalDifferenceShowsInMap(t *testing.T) {
	a := grayMat(120, 120, 230)
	defer a.Close()
	b := a.Clone()
	defer b.Close()
	// Dark square in the test image only.
	for y := 40; y < 80; y++ {
		for x := 40; x < 80; x++ {
			b.SetUCharAt(y, x, 10)
		}
	}

	score, diffMap := SSIM(a, b)
	defer diffMap.Close()

	assert.Less(t, score, 0.95)

	inside := diffMap.GetUCharAt(60, 60)
	corner := diffMap.GetUCharAt(5, 5)
	assert.Greater(t, int(inside), 100)
	assert.Less(t, int(corner), 10)
}
