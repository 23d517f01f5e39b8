// Command comparetest runs the comparison pipeline on two image files and
// prints the classified differences.
package main

import (
	"flag"
	"fmt"
	"os"

	"visual-tracer/internal/compare"
	"visual-tracer/internal/report"
)

func main() {
	refPath := flag.String("ref", "", "Path to reference image")
	testPath := flag.String("test", "", "Path to test image")
	sensitivity := flag.Int("sensitivity", 50, "Detection sensitivity, 0-100")
	outDir := flag.String("out", "", "Directory for diff artifacts (optional)")
	flag.Parse()

	if *refPath == "" || *testPath == "" {
		fmt.Println("Usage: comparetest -ref <image> -test <image> [-sensitivity N] [-out <dir>]")
		os.Exit(1)
	}

	reference, err := compare.LoadImage(*refPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load reference: %v\n", err)
		os.Exit(1)
	}
	defer reference.Close()

	test, err := compare.LoadImage(*testPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load test image: %v\n", err)
		os.Exit(1)
	}
	defer test.Close()

	opts := compare.DefaultOptions()
	opts.Sensitivity = *sensitivity
	opts.KeepArtifacts = *outDir != ""

	result, err := compare.CompareImages(reference, test, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Comparison failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Comparison result ===\n")
	fmt.Printf("Similarity: %.4f\n", result.OverallSimilarity)
	fmt.Printf("Changed pixels: %.2f%%\n", result.ChangeRatio*100)
	if result.AlignmentUsed {
		fmt.Println("Alignment: keypoint")
	} else {
		fmt.Println("Alignment: resize fallback")
	}
	fmt.Printf("Issues: %d\n", len(result.Issues))
	for i, issue := range result.Issues {
		fmt.Printf("  [%d] %s at %s (%d,%d %dx%d) severity=%.1f",
			i, issue.Category, issue.Location, issue.X, issue.Y, issue.Width, issue.Height, issue.Severity)
		if issue.Detail != "" {
			fmt.Printf(" - %s", issue.Detail)
		}
		fmt.Println()
	}

	if *outDir != "" {
		defer result.Artifacts.Close()
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output dir: %v\n", err)
			os.Exit(1)
		}
		if err := report.WriteArtifacts(*outDir, result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write artifacts: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Artifacts written to %s\n", *outDir)
	}
}
