package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 60*time.Second, cfg.CaptureTimeout)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
	assert.Equal(t, "Bug", cfg.Jira.IssueType)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DATA_DIR", "/tmp/vt-data")
	t.Setenv("CAPTURE_TIMEOUT", "90")
	t.Setenv("JOB_TIMEOUT", "10m")
	t.Setenv("JIRA_BASE_URL", "https://jira.example.com")
	t.Setenv("GITHUB_TOKEN", "tok")

	cfg := Load()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "/tmp/vt-data", cfg.DataDir)
	assert.Equal(t, 90*time.Second, cfg.CaptureTimeout)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
	assert.Equal(t, "https://jira.example.com", cfg.Jira.BaseURL)
	assert.Equal(t, "tok", cfg.GitHub.Token)
}

func TestGetduration_BadValueFallsBack(t *testing.T) {
	t.Setenv("JOB_TIMEOUT", "not-a-duration")
	assert.Equal(t, 5*time.Minute, Load().JobTimeout)
}
