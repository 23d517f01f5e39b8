// Package server exposes the comparison pipeline over HTTP.
package server

import (
	"visual-tracer/internal/baseline"
	"visual-tracer/internal/capture"
	"visual-tracer/internal/config"
	"visual-tracer/internal/history"
	"visual-tracer/internal/jobs"
	"visual-tracer/internal/tracker"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

type Server struct {
	app       *fiber.App
	log       *logrus.Logger
	validator *validator.Validate
	runner    *jobs.Runner
	history   *history.Store
	baselines *baseline.Store
	jira      tracker.Client
	github    tracker.Client
}

// New wires the HTTP layer. Tracker clients are only created for trackers
// the config actually fills in.
func New(cfg config.Config, runner *jobs.Runner, historyStore *history.Store,
	baselines *baseline.Store, logger *logrus.Logger) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	v := validator.New()
	_ = v.RegisterValidation("viewport", func(fl validator.FieldLevel) bool {
		return capture.ValidViewport(fl.Field().String())
	})

	s := &Server{
		app:       app,
		log:       logger,
		validator: v,
		runner:    runner,
		history:   historyStore,
		baselines: baselines,
	}
	if cfg.Jira.BaseURL != "" {
		jiraClient, err := tracker.NewJiraClient(cfg.Jira)
		if err != nil {
			logger.WithError(err).Warn("Jira tracker disabled")
		} else {
			s.jira = jiraClient
		}
	}
	if cfg.GitHub.Token != "" {
		githubClient, err := tracker.NewGitHubClient(cfg.GitHub)
		if err != nil {
			logger.WithError(err).Warn("GitHub tracker disabled")
		} else {
			s.github = githubClient
		}
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Post("/compare", s.Compare)
	api.Get("/status/:id", s.Status)

	api.Get("/history", s.History)
	api.Delete("/history/:id", s.DeleteRun)

	api.Post("/jobs/:id/approve", s.Approve)
	api.Post("/jobs/:id/reject", s.Reject)

	api.Get("/baselines", s.Baselines)
	api.Post("/baselines/promote/:jobID", s.PromoteBaseline)
	api.Post("/baselines/rollback", s.RollbackBaseline)
	api.Post("/baselines/delete", s.DeleteBaseline)

	api.Get("/download/:jobID/:file", s.Download)
	api.Post("/ticket", s.CreateTicket)
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
