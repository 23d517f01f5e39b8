// Package jobs runs comparisons off the request path. Each job is one
// independent comparison; a semaphore sized to the CPU count bounds how many
// run at once since every pipeline stage is CPU-bound.
package jobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"visual-tracer/internal/baseline"
	"visual-tracer/internal/capture"
	"visual-tracer/internal/classify"
	"visual-tracer/internal/compare"
	"visual-tracer/internal/history"
	"visual-tracer/internal/report"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ReferenceFile is the reference image filename inside a job directory.
const ReferenceFile = "reference.png"

// TestFile is the captured screenshot filename inside a job directory.
const TestFile = "test.png"

// Capturer supplies the test screenshot. Satisfied by capture.Client;
// swapped out in tests.
type Capturer interface {
	Capture(ctx context.Context, url, outPath string, opts capture.Options) error
}

// Request describes one comparison job.
type Request struct {
	URL string
	// ReferencePath points at an uploaded reference image. Empty means use
	// the URL's active baseline.
	ReferencePath   string
	Viewport        string
	FullPage        bool
	SettleDelay     time.Duration
	HideSelectors   []string
	RemoveSelectors []string
	MaxHeight       int
	Sensitivity     int
	Filters         classify.FilterSet
}

// Runner owns the worker pool and the job artifact directories.
type Runner struct {
	store     *history.Store
	baselines *baseline.Store
	capturer  Capturer
	log       *logrus.Logger
	sem       *semaphore.Weighted
	dataDir   string

	captureTimeout time.Duration
	jobTimeout     time.Duration

	wg sync.WaitGroup
}

// NewRunner builds a runner whose concurrency matches the CPU count.
func NewRunner(store *history.Store, baselines *baseline.Store, capturer Capturer,
	dataDir string, captureTimeout, jobTimeout time.Duration, logger *logrus.Logger) *Runner {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		store:          store,
		baselines:      baselines,
		capturer:       capturer,
		log:            logger,
		sem:            semaphore.NewWeighted(int64(workers)),
		dataDir:        dataDir,
		captureTimeout: captureTimeout,
		jobTimeout:     jobTimeout,
	}
}

// JobDir returns the artifact directory for a job.
func (r *Runner) JobDir(jobID string) string {
	return filepath.Join(r.dataDir, jobID)
}

// Submit validates the request, stages the reference image and queues the
// job. It returns the job id immediately; results land in the history store.
func (r *Runner) Submit(req Request) (string, error) {
	jobID := uuid.NewString()
	jobDir := r.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	referenceSource := "upload"
	referencePath := req.ReferencePath
	if referencePath == "" {
		path, ok := r.baselines.ActivePath(req.URL)
		if !ok {
			return "", fmt.Errorf("no reference image uploaded and no active baseline for %s", req.URL)
		}
		referencePath = path
		referenceSource = "baseline"
	}
	if err := copyFile(referencePath, filepath.Join(jobDir, ReferenceFile)); err != nil {
		return "", fmt.Errorf("stage reference image: %w", err)
	}
	if req.ReferencePath != "" {
		os.Remove(req.ReferencePath)
	}

	record := history.Record{
		ID:              jobID,
		URL:             req.URL,
		Viewport:        req.Viewport,
		Sensitivity:     req.Sensitivity,
		ReferenceSource: referenceSource,
		Status:          history.StatusQueued,
		ArtifactDir:     jobDir,
	}
	if err := r.store.Save(record); err != nil {
		return "", err
	}

	r.wg.Add(1)
	go r.run(jobID, jobDir, req)
	return jobID, nil
}

// Wait blocks until every in-flight job has finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(jobID, jobDir string, req Request) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.jobTimeout)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.fail(jobID, fmt.Errorf("job queue: %w", err))
		return
	}
	defer r.sem.Release(1)

	r.setStatus(jobID, history.StatusProcessing)
	logger := r.log.WithFields(logrus.Fields{"job": jobID, "url": req.URL})

	result, err := r.execute(ctx, jobDir, req)
	if err != nil {
		logger.WithError(err).Error("Comparison failed")
		r.fail(jobID, err)
		return
	}

	if err := r.store.Update(jobID, func(rec *history.Record) {
		rec.Status = history.StatusDone
		rec.Result = result
	}); err != nil {
		logger.WithError(err).Error("Persist result")
		return
	}
	logger.WithFields(logrus.Fields{
		"issues":     len(result.Issues),
		"similarity": result.OverallSimilarity,
	}).Info("Comparison finished")
}

func (r *Runner) execute(ctx context.Context, jobDir string, req Request) (*compare.Result, error) {
	testPath := filepath.Join(jobDir, TestFile)
	captureOpts := capture.Options{
		Viewport:        req.Viewport,
		FullPage:        req.FullPage,
		SettleDelay:     req.SettleDelay,
		HideSelectors:   req.HideSelectors,
		RemoveSelectors: req.RemoveSelectors,
		MaxHeight:       req.MaxHeight,
		Timeout:         r.captureTimeout,
	}
	if err := r.capturer.Capture(ctx, req.URL, testPath, captureOpts); err != nil {
		return nil, err
	}

	reference, err := compare.LoadImage(filepath.Join(jobDir, ReferenceFile))
	if err != nil {
		return nil, err
	}
	defer reference.Close()
	test, err := compare.LoadImage(testPath)
	if err != nil {
		return nil, err
	}
	defer test.Close()

	opts := compare.Options{
		Sensitivity:   req.Sensitivity,
		Filters:       req.Filters,
		KeepArtifacts: true,
	}
	result, err := compare.CompareImages(reference, test, opts)
	if err != nil {
		return nil, err
	}
	defer result.Artifacts.Close()

	if err := report.WriteArtifacts(jobDir, result); err != nil {
		return nil, err
	}
	meta := report.Meta{JobID: filepath.Base(jobDir), URL: req.URL, Viewport: req.Viewport, CreatedAt: time.Now().UTC()}
	if err := report.WritePDF(jobDir, meta, result); err != nil {
		return nil, err
	}

	result.Artifacts = nil
	return result, nil
}

func (r *Runner) setStatus(jobID string, status history.Status) {
	if err := r.store.Update(jobID, func(rec *history.Record) {
		rec.Status = status
	}); err != nil {
		r.log.WithError(err).WithField("job", jobID).Error("Update status")
	}
}

func (r *Runner) fail(jobID string, cause error) {
	if err := r.store.Update(jobID, func(rec *history.Record) {
		rec.Status = history.StatusError
		rec.Error = cause.Error()
	}); err != nil {
		r.log.WithError(err).WithField("job", jobID).Error("Record failure")
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
