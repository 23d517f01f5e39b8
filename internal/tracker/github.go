package tracker

import (
	"context"
	"fmt"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

// GitHubConfig holds the settings for filing issues in a repository.
type GitHubConfig struct {
	Token string
	Owner string
	Repo  string
}

// GitHubClient files tickets as GitHub issues.
type GitHubClient struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubClient builds a token-authenticated client.
func NewGitHubClient(cfg GitHubConfig) (*GitHubClient, error) {
	if cfg.Token == "" || cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github config incomplete")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	return &GitHubClient{
		client: github.NewClient(httpClient),
		owner:  cfg.Owner,
		repo:   cfg.Repo,
	}, nil
}

// CreateTicket files the ticket and returns the issue's HTML URL.
func (c *GitHubClient) CreateTicket(ctx context.Context, t Ticket) (string, error) {
	req := &github.IssueRequest{
		Title:  github.String(t.Title),
		Body:   github.String(t.Body),
		Labels: &[]string{"visual-regression"},
	}

	issue, _, err := c.client.Issues.Create(ctx, c.owner, c.repo, req)
	if err != nil {
		return "", fmt.Errorf("create github issue: %w", err)
	}
	return issue.GetHTMLURL(), nil
}
