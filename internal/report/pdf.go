package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"visual-tracer/internal/compare"

	"github.com/go-pdf/fpdf"
)

// Meta is the run information printed in the PDF header.
type Meta struct {
	JobID     string
	URL       string
	Viewport  string
	CreatedAt time.Time
}

// WritePDF renders a single-file summary of the comparison into dir,
// embedding the annotated overlay when it exists.
func WritePDF(dir string, meta Meta, result *compare.Result) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Visual Comparison Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Visual Comparison Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Job: %s", meta.JobID), "", 1, "L", false, 0, "")
	if meta.URL != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("URL: %s", meta.URL), "", 1, "L", false, 0, "")
	}
	if meta.Viewport != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Viewport: %s", meta.Viewport), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Run at: %s", meta.CreatedAt.Format(time.RFC1123)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	alignment := "keypoint alignment"
	if !result.AlignmentUsed {
		alignment = "resize fallback"
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Similarity: %.4f", result.OverallSimilarity), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Changed pixels: %.2f%%", result.ChangeRatio*100), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issues: %d (%s)", len(result.Issues), alignment), "", 1, "L", false, 0, "")
	if summary := categorySummary(result); summary != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("By category: %s", summary), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	if len(result.Issues) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Issues", "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(10, 6, "#", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Category", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, "Location", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, "Size", "1", 0, "L", false, 0, "")
		pdf.CellFormat(75, 6, "Detail", "1", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for i, issue := range result.Issues {
			pdf.CellFormat(10, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
			pdf.CellFormat(45, 6, string(issue.Category), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, issue.Location, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%dx%dpx", issue.Width, issue.Height), "1", 0, "L", false, 0, "")
			pdf.CellFormat(75, 6, issue.Detail, "1", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	overlayPath := filepath.Join(dir, FileOverlay)
	if _, err := os.Stat(overlayPath); err == nil {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Annotated capture", "", 1, "L", false, 0, "")
		pdf.ImageOptions(overlayPath, 15, pdf.GetY(), 180, 0, false,
			fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	if err := pdf.OutputFileAndClose(filepath.Join(dir, FilePDF)); err != nil {
		return fmt.Errorf("write pdf report: %w", err)
	}
	return nil
}

// categorySummary counts issues per category in first-seen order.
func categorySummary(result *compare.Result) string {
	counts := make(map[string]int)
	var order []string
	for _, issue := range result.Issues {
		name := string(issue.Category)
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, fmt.Sprintf("%s %d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}
