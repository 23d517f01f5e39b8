package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"visual-tracer/internal/baseline"
	"visual-tracer/internal/capture"
	"visual-tracer/internal/config"
	"visual-tracer/internal/history"
	"visual-tracer/internal/jobs"
	"visual-tracer/internal/server"
	"visual-tracer/pkg/log"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}
	cfg := config.Load()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.WithError(err).Fatal("Create data directory")
	}

	historyStore, err := history.NewStore(filepath.Join(cfg.DataDir, "runs.json"))
	if err != nil {
		logger.WithError(err).Fatal("Open run store")
	}
	baselineStore, err := baseline.NewStore(
		filepath.Join(cfg.DataDir, "baselines"),
		filepath.Join(cfg.DataDir, "baselines.json"),
	)
	if err != nil {
		logger.WithError(err).Fatal("Open baseline store")
	}

	capturer := capture.New(logger)
	runner := jobs.NewRunner(historyStore, baselineStore, capturer,
		filepath.Join(cfg.DataDir, "jobs"), cfg.CaptureTimeout, cfg.JobTimeout, logger)

	srv := server.New(cfg, runner, historyStore, baselineStore, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.WithError(err).Error("Server shutdown")
		}
	}()

	logger.WithField("port", cfg.Port).Info("Starting server")
	if err := srv.Listen(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}

	runner.Wait()
	logger.Info("All jobs drained, bye")
}
