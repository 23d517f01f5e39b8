package diff

// Thresholds are the detection and filtering knobs derived from the single
// 0..100 sensitivity value.
//
// SeverityMin and MinArea shrink as sensitivity grows, so every region kept
// at a lower sensitivity is also kept at a higher one; the floors (3 and 20)
// are shared by all sensitivities and preserve that ordering exactly.
type Thresholds struct {
	// SeverityMin is the minimum mean difference-map intensity inside a
	// region's bounding box for the region to be reported.
	SeverityMin int
	// MinArea is the minimum bounding-box area in px².
	MinArea int
	// DilateIterations controls how aggressively nearby difference pixels
	// merge into one region. Higher sensitivity merges less, yielding more
	// granular regions.
	DilateIterations int
	// HighlightThreshold is the per-pixel cut used for the changed-pixel
	// mask and overlay rendering, not for region retention.
	HighlightThreshold int
}

// ThresholdsForSensitivity maps a sensitivity percentage to concrete
// thresholds. Sensitivity 95 keeps subtle differences (SeverityMin ~6);
// sensitivity 25 keeps only obvious ones (SeverityMin ~97).
func ThresholdsForSensitivity(sensitivity int) Thresholds {
	if sensitivity < 0 {
		sensitivity = 0
	}
	if sensitivity > 100 {
		sensitivity = 100
	}

	t := Thresholds{
		SeverityMin:        max(3, 130*(100-sensitivity)/100),
		MinArea:            max(20, 600*(100-sensitivity)/100),
		HighlightThreshold: max(5, 200*(100-sensitivity)/100),
	}

	switch {
	case sensitivity >= 80:
		t.DilateIterations = 1
	case sensitivity >= 50:
		t.DilateIterations = 2
	default:
		t.DilateIterations = 3
	}

	return t
}
