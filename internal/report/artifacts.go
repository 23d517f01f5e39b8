// Package report renders the downloadable artifacts for a finished
// comparison: annotated overlay, difference heatmap, per-issue crops and a
// PDF summary.
package report

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"visual-tracer/internal/compare"

	"gocv.io/x/gocv"
)

const (
	overlayAlpha = 0.35
	boxThickness = 2
	cropPadding  = 10
)

var markerRed = color.RGBA{R: 255, G: 0, B: 0, A: 255}

// Filenames of the rendered artifacts inside a job directory.
const (
	FileAligned = "test_aligned.png"
	FileOverlay = "diff_overlay.png"
	FileHeatmap = "diff_heatmap.png"
	FilePDF     = "report.pdf"
)

// IssueCropName returns the filename for the n-th (1-based) issue crop.
func IssueCropName(n int) string {
	return fmt.Sprintf("issue_%d.png", n)
}

// WriteArtifacts renders all image artifacts for a result into dir. The
// result must have been produced with KeepArtifacts set.
func WriteArtifacts(dir string, result *compare.Result) error {
	art := result.Artifacts
	if art == nil {
		return fmt.Errorf("result carries no artifacts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	if ok := gocv.IMWrite(filepath.Join(dir, FileAligned), art.TestCrop); !ok {
		return fmt.Errorf("write %s", FileAligned)
	}

	heat := gocv.NewMat()
	defer heat.Close()
	gocv.ApplyColorMap(art.DiffMap, &heat, gocv.ColormapJet)
	if ok := gocv.IMWrite(filepath.Join(dir, FileHeatmap), heat); !ok {
		return fmt.Errorf("write %s", FileHeatmap)
	}

	overlay := renderOverlay(result)
	defer overlay.Close()
	if ok := gocv.IMWrite(filepath.Join(dir, FileOverlay), overlay); !ok {
		return fmt.Errorf("write %s", FileOverlay)
	}

	return writeIssueCrops(dir, result)
}

// renderOverlay tints the changed pixels red on the aligned test image and
// draws a box around every reported issue.
func renderOverlay(result *compare.Result) gocv.Mat {
	art := result.Artifacts
	overlay := art.TestCrop.Clone()

	red := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0),
		overlay.Rows(), overlay.Cols(), gocv.MatTypeCV8UC3)
	defer red.Close()

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(overlay, 1-overlayAlpha, red, overlayAlpha, 0, &blended)
	blended.CopyToWithMask(&overlay, art.ChangedMask)

	for _, issue := range result.Issues {
		rect := image.Rect(issue.X, issue.Y, issue.X+issue.Width, issue.Y+issue.Height)
		gocv.Rectangle(&overlay, rect, markerRed, boxThickness)
	}
	return overlay
}

// writeIssueCrops saves a padded clean crop of the test image per issue.
func writeIssueCrops(dir string, result *compare.Result) error {
	art := result.Artifacts
	imgW, imgH := art.TestCrop.Cols(), art.TestCrop.Rows()

	for i, issue := range result.Issues {
		x1 := max(0, issue.X-cropPadding)
		y1 := max(0, issue.Y-cropPadding)
		x2 := min(imgW, issue.X+issue.Width+cropPadding)
		y2 := min(imgH, issue.Y+issue.Height+cropPadding)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		view := art.TestCrop.Region(image.Rect(x1, y1, x2, y2))
		name := IssueCropName(i + 1)
		ok := gocv.IMWrite(filepath.Join(dir, name), view)
		view.Close()
		if !ok {
			return fmt.Errorf("write %s", name)
		}
	}
	return nil
}
