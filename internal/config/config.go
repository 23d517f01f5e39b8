// Package config reads service settings from the environment. A .env file,
// when present, is loaded by the entrypoint before this runs.
package config

import (
	"os"
	"strconv"
	"time"

	"visual-tracer/internal/tracker"
)

// Config holds every runtime setting for the server.
type Config struct {
	Port    string
	DataDir string

	// CaptureTimeout bounds a single page capture; JobTimeout bounds an
	// entire comparison job including capture and report rendering.
	CaptureTimeout time.Duration
	JobTimeout     time.Duration

	Jira   tracker.JiraConfig
	GitHub tracker.GitHubConfig
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset.
func Load() Config {
	return Config{
		Port:           getenv("PORT", "8080"),
		DataDir:        getenv("DATA_DIR", "data"),
		CaptureTimeout: getduration("CAPTURE_TIMEOUT", 60*time.Second),
		JobTimeout:     getduration("JOB_TIMEOUT", 5*time.Minute),
		Jira: tracker.JiraConfig{
			BaseURL:    os.Getenv("JIRA_BASE_URL"),
			Username:   os.Getenv("JIRA_USERNAME"),
			APIToken:   os.Getenv("JIRA_API_TOKEN"),
			ProjectKey: os.Getenv("JIRA_PROJECT_KEY"),
			IssueType:  getenv("JIRA_ISSUE_TYPE", "Bug"),
		},
		GitHub: tracker.GitHubConfig{
			Token: os.Getenv("GITHUB_TOKEN"),
			Owner: os.Getenv("GITHUB_OWNER"),
			Repo:  os.Getenv("GITHUB_REPO"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
