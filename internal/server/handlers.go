package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"visual-tracer/internal/history"
	"visual-tracer/internal/jobs"
	"visual-tracer/internal/tracker"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Compare accepts a comparison request and queues a job. The reference image
// is either an uploaded "reference" file or the URL's active baseline.
func (s *Server) Compare(ctx *fiber.Ctx) error {
	var req compareRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, fmt.Sprintf("parse request: %v", err))
	}
	if req.Viewport == "" {
		req.Viewport = "desktop"
	}
	if ctx.FormValue("sensitivity") == "" {
		req.Sensitivity = 50
	}
	if err := s.validator.Struct(req); err != nil {
		return badRequest(ctx, err.Error())
	}
	filters, unknown := req.filterSet()
	if len(unknown) > 0 {
		return badRequest(ctx, fmt.Sprintf("unknown filters: %s", strings.Join(unknown, ", ")))
	}

	var referencePath string
	if file, err := ctx.FormFile("reference"); err == nil {
		referencePath = filepath.Join(os.TempDir(), fmt.Sprintf("ref_upload_%d_%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
		if err := ctx.SaveFile(file, referencePath); err != nil {
			return serverError(ctx, s.log, "save reference upload", err)
		}
	}

	jobID, err := s.runner.Submit(jobs.Request{
		URL:             req.URL,
		ReferencePath:   referencePath,
		Viewport:        req.Viewport,
		FullPage:        req.FullPage,
		SettleDelay:     time.Duration(req.WaitTime) * time.Second,
		HideSelectors:   req.hideSelectors(),
		RemoveSelectors: req.removeSelectors(),
		MaxHeight:       req.MaxHeight,
		Sensitivity:     req.Sensitivity,
		Filters:         filters,
	})
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	s.log.WithFields(logrus.Fields{"job": jobID, "url": req.URL}).Info("Comparison queued")
	return ctx.Status(fiber.StatusAccepted).JSON(jobResponse{JobID: jobID, Status: string(history.StatusQueued)})
}

// Status returns the full record for one job.
func (s *Server) Status(ctx *fiber.Ctx) error {
	record, ok := s.history.Get(ctx.Params("id"))
	if !ok {
		return notFound(ctx, "unknown job")
	}
	return ctx.JSON(record)
}

// History pages through past runs, newest first.
func (s *Server) History(ctx *fiber.Ctx) error {
	page := ctx.QueryInt("page", 1)
	perPage := ctx.QueryInt("limit", 20)
	records, total := s.history.List(page, perPage)
	return ctx.JSON(fiber.Map{
		"runs":  records,
		"total": total,
		"page":  page,
		"limit": perPage,
	})
}

// DeleteRun removes a run and its artifact directory.
func (s *Server) DeleteRun(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	record, ok := s.history.Get(id)
	if !ok {
		return notFound(ctx, "unknown job")
	}
	if err := s.history.Delete(id); err != nil {
		return serverError(ctx, s.log, "delete run", err)
	}
	if record.ArtifactDir != "" {
		os.RemoveAll(record.ArtifactDir)
	}
	return ctx.JSON(fiber.Map{"deleted": id})
}

// Approve marks a finished run approved and promotes its captured screenshot
// to the active baseline for the run's URL.
func (s *Server) Approve(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	record, ok := s.history.Get(id)
	if !ok {
		return notFound(ctx, "unknown job")
	}
	if record.Status != history.StatusDone {
		return badRequest(ctx, "job has not finished")
	}
	if record.URL == "" {
		return badRequest(ctx, "job has no URL to baseline")
	}

	testPath := filepath.Join(record.ArtifactDir, jobs.TestFile)
	versionID, err := s.baselines.Promote(record.URL, id, testPath)
	if err != nil {
		return serverError(ctx, s.log, "promote baseline", err)
	}
	if err := s.history.Update(id, func(rec *history.Record) {
		rec.Approval = "approved"
	}); err != nil {
		return serverError(ctx, s.log, "record approval", err)
	}

	s.log.WithFields(logrus.Fields{"job": id, "url": record.URL, "version": versionID}).Info("Run approved")
	return ctx.JSON(fiber.Map{"job_id": id, "approval": "approved", "baseline_version": versionID})
}

// Reject marks a finished run rejected. The baseline is left untouched.
func (s *Server) Reject(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	record, ok := s.history.Get(id)
	if !ok {
		return notFound(ctx, "unknown job")
	}
	if record.Status != history.StatusDone {
		return badRequest(ctx, "job has not finished")
	}
	if err := s.history.Update(id, func(rec *history.Record) {
		rec.Approval = "rejected"
	}); err != nil {
		return serverError(ctx, s.log, "record rejection", err)
	}
	return ctx.JSON(fiber.Map{"job_id": id, "approval": "rejected"})
}

// Baselines lists every URL's baseline history.
func (s *Server) Baselines(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"baselines": s.baselines.List()})
}

// PromoteBaseline promotes a job's captured screenshot without going through
// the approval flow.
func (s *Server) PromoteBaseline(ctx *fiber.Ctx) error {
	id := ctx.Params("jobID")
	record, ok := s.history.Get(id)
	if !ok {
		return notFound(ctx, "unknown job")
	}
	if record.Status != history.StatusDone {
		return badRequest(ctx, "job has not finished")
	}
	versionID, err := s.baselines.Promote(record.URL, id, filepath.Join(record.ArtifactDir, jobs.TestFile))
	if err != nil {
		return serverError(ctx, s.log, "promote baseline", err)
	}
	return ctx.JSON(fiber.Map{"job_id": id, "baseline_version": versionID})
}

// RollbackBaseline reactivates an older baseline version.
func (s *Server) RollbackBaseline(ctx *fiber.Ctx) error {
	var req rollbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, fmt.Sprintf("parse request: %v", err))
	}
	if err := s.validator.Struct(req); err != nil {
		return badRequest(ctx, err.Error())
	}
	if err := s.baselines.Rollback(req.URL, req.VersionID); err != nil {
		return badRequest(ctx, err.Error())
	}
	return ctx.JSON(fiber.Map{"url": req.URL, "active_version": req.VersionID})
}

// DeleteBaseline removes a URL's entire baseline history.
func (s *Server) DeleteBaseline(ctx *fiber.Ctx) error {
	var req deleteBaselineRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, fmt.Sprintf("parse request: %v", err))
	}
	if err := s.validator.Struct(req); err != nil {
		return badRequest(ctx, err.Error())
	}
	if err := s.baselines.Delete(req.URL); err != nil {
		return badRequest(ctx, err.Error())
	}
	return ctx.JSON(fiber.Map{"deleted": req.URL})
}

// Download serves one artifact file from a job directory. Filenames are
// restricted to a flat basename so paths cannot escape the directory.
func (s *Server) Download(ctx *fiber.Ctx) error {
	record, ok := s.history.Get(ctx.Params("jobID"))
	if !ok {
		return notFound(ctx, "unknown job")
	}
	name := filepath.Base(filepath.Clean(ctx.Params("file")))
	if name == "." || strings.HasPrefix(name, "..") {
		return badRequest(ctx, "invalid filename")
	}
	path := filepath.Join(record.ArtifactDir, name)
	if _, err := os.Stat(path); err != nil {
		return notFound(ctx, "no such artifact")
	}
	return ctx.SendFile(path)
}

// CreateTicket files one issue from a finished run to an external tracker.
func (s *Server) CreateTicket(ctx *fiber.Ctx) error {
	var req ticketRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, fmt.Sprintf("parse request: %v", err))
	}
	if err := s.validator.Struct(req); err != nil {
		return badRequest(ctx, err.Error())
	}

	record, ok := s.history.Get(req.JobID)
	if !ok {
		return notFound(ctx, "unknown job")
	}
	if record.Status != history.StatusDone || record.Result == nil {
		return badRequest(ctx, "job has no result")
	}
	if req.IssueIndex >= len(record.Result.Issues) {
		return badRequest(ctx, "issue index out of range")
	}

	var client tracker.Client
	switch req.Tracker {
	case "jira":
		client = s.jira
	case "github":
		client = s.github
	}
	if client == nil {
		return badRequest(ctx, fmt.Sprintf("%s tracker is not configured", req.Tracker))
	}

	ticket := tracker.BuildTicket(req.JobID, record.URL, req.IssueIndex, record.Result.Issues[req.IssueIndex])
	ref, err := client.CreateTicket(ctx.Context(), ticket)
	if err != nil {
		return serverError(ctx, s.log, "create ticket", err)
	}

	s.log.WithFields(logrus.Fields{"job": req.JobID, "tracker": req.Tracker, "ref": ref}).Info("Ticket created")
	return ctx.Status(fiber.StatusCreated).JSON(ticketResponse{Tracker: req.Tracker, Ref: ref})
}

func badRequest(ctx *fiber.Ctx, msg string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: msg})
}

func notFound(ctx *fiber.Ctx, msg string) error {
	return ctx.Status(fiber.StatusNotFound).JSON(errorResponse{Error: msg})
}

func serverError(ctx *fiber.Ctx, log *logrus.Logger, op string, err error) error {
	log.WithError(err).Error(op)
	return ctx.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: fmt.Sprintf("%s: %v", op, err)})
}
