package jobs

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"
	"time"

	"visual-tracer/internal/baseline"
	"visual-tracer/internal/capture"
	"visual-tracer/internal/history"
	"visual-tracer/internal/report"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCapturer writes a fixed image instead of driving a browser.
type fakeCapturer struct {
	img      image.Image
	err      error
	lastOpts capture.Options
}

func (f *fakeCapturer) Capture(_ context.Context, _, outPath string, opts capture.Options) error {
	f.lastOpts = opts
	if f.err != nil {
		return f.err
	}
	return imaging.Save(f.img, outPath)
}

// pageImage is a white page with a black box when marked is set.
func pageImage(marked bool) image.Image {
	img := imaging.New(200, 200, color.White)
	if marked {
		draw.Draw(img, image.Rect(80, 80, 120, 120), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	return img
}

func newTestRunner(t *testing.T, capturer Capturer) (*Runner, *history.Store, *baseline.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := history.NewStore(filepath.Join(dir, "runs.json"))
	require.NoError(t, err)
	baselines, err := baseline.NewStore(filepath.Join(dir, "baselines"), filepath.Join(dir, "baselines.json"))
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	runner := NewRunner(store, baselines, capturer, filepath.Join(dir, "jobs"),
		10*time.Second, time.Minute, logger)
	return runner, store, baselines
}

func writeReference(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reference.png")
	require.NoError(t, imaging.Save(pageImage(false), path))
	return path
}

func TestRunner_CompletesJob(t *testing.T) {
	runner, store, _ := newTestRunner(t, &fakeCapturer{img: pageImage(true)})

	jobID, err := runner.Submit(Request{
		URL:           "https://example.com",
		ReferencePath: writeReference(t),
		Viewport:      "desktop",
		Sensitivity:   50,
	})
	require.NoError(t, err)
	runner.Wait()

	record, ok := store.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, history.StatusDone, record.Status)
	require.NotNil(t, record.Result)
	assert.NotEmpty(t, record.Result.Issues)
	assert.Less(t, record.Result.OverallSimilarity, 1.0)

	jobDir := runner.JobDir(jobID)
	assert.FileExists(t, filepath.Join(jobDir, ReferenceFile))
	assert.FileExists(t, filepath.Join(jobDir, TestFile))
	assert.FileExists(t, filepath.Join(jobDir, report.FileOverlay))
	assert.FileExists(t, filepath.Join(jobDir, report.FileHeatmap))
	assert.FileExists(t, filepath.Join(jobDir, report.FilePDF))
}

func TestRunner_PassesCaptureOptions(t *testing.T) {
	capturer := &fakeCapturer{img: pageImage(false)}
	runner, _, _ := newTestRunner(t, capturer)

	_, err := runner.Submit(Request{
		URL:             "https://example.com",
		ReferencePath:   writeReference(t),
		Viewport:        "800x600",
		FullPage:        true,
		RemoveSelectors: []string{".cookie-banner"},
		MaxHeight:       4000,
		Sensitivity:     50,
	})
	require.NoError(t, err)
	runner.Wait()

	assert.Equal(t, "800x600", capturer.lastOpts.Viewport)
	assert.True(t, capturer.lastOpts.FullPage)
	assert.Equal(t, []string{".cookie-banner"}, capturer.lastOpts.RemoveSelectors)
	assert.Equal(t, 4000, capturer.lastOpts.MaxHeight)
}

func TestRunner_IdenticalPagesReportClean(t *testing.T) {
	runner, store, _ := newTestRunner(t, &fakeCapturer{img: pageImage(false)})

	jobID, err := runner.Submit(Request{
		URL:           "https://example.com",
		ReferencePath: writeReference(t),
		Sensitivity:   50,
	})
	require.NoError(t, err)
	runner.Wait()

	record, _ := store.Get(jobID)
	require.Equal(t, history.StatusDone, record.Status)
	assert.Empty(t, record.Result.Issues)
	assert.Greater(t, record.Result.OverallSimilarity, 0.99)
}

func TestRunner_CaptureFailureMarksError(t *testing.T) {
	runner, store, _ := newTestRunner(t, &fakeCapturer{err: fmt.Errorf("browser crashed")})

	jobID, err := runner.Submit(Request{
		URL:           "https://example.com",
		ReferencePath: writeReference(t),
	})
	require.NoError(t, err)
	runner.Wait()

	record, _ := store.Get(jobID)
	assert.Equal(t, history.StatusError, record.Status)
	assert.Contains(t, record.Error, "browser crashed")
	assert.Nil(t, record.Result)
}

func TestRunner_NoReferenceAndNoBaseline(t *testing.T) {
	runner, _, _ := newTestRunner(t, &fakeCapturer{img: pageImage(false)})

	_, err := runner.Submit(Request{URL: "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active baseline")
}

func TestRunner_UsesActiveBaseline(t *testing.T) {
	runner, store, baselines := newTestRunner(t, &fakeCapturer{img: pageImage(false)})

	_, err := baselines.Promote("https://example.com", "seed-job", writeReference(t))
	require.NoError(t, err)

	jobID, err := runner.Submit(Request{URL: "https://example.com", Sensitivity: 50})
	require.NoError(t, err)
	runner.Wait()

	record, _ := store.Get(jobID)
	assert.Equal(t, history.StatusDone, record.Status)
	assert.Equal(t, "baseline", record.ReferenceSource)
	assert.Empty(t, record.Result.Issues)
}
