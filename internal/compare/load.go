package compare

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	_ "golang.org/x/image/webp"
)

// LoadImage reads an image file into a BGR Mat. Transparent pixels are
// composited over white first, matching how a browser renders design
// exports with alpha.
func LoadImage(path string) (gocv.Mat, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("read image %s: %w", path, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: %s has zero dimension", ErrInvalidInput, path)
	}

	white := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flattened := imaging.OverlayCenter(white, img, 1.0)
	return imageToBGRMat(flattened), nil
}

// imageToBGRMat converts a Go image to a 3-channel BGR Mat.
func imageToBGRMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat
}
