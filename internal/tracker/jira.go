package tracker

import (
	"context"
	"fmt"

	jira "github.com/andygrunwald/go-jira"
)

// JiraConfig holds the connection settings for a Jira Cloud instance.
type JiraConfig struct {
	BaseURL    string
	Username   string
	APIToken   string
	ProjectKey string
	IssueType  string
}

// JiraClient files tickets in a Jira project.
type JiraClient struct {
	client    *jira.Client
	project   string
	issueType string
}

// NewJiraClient builds a client using basic auth with an API token.
func NewJiraClient(cfg JiraConfig) (*JiraClient, error) {
	if cfg.BaseURL == "" || cfg.Username == "" || cfg.APIToken == "" || cfg.ProjectKey == "" {
		return nil, fmt.Errorf("jira config incomplete")
	}
	if cfg.IssueType == "" {
		cfg.IssueType = "Bug"
	}

	tp := jira.BasicAuthTransport{Username: cfg.Username, Password: cfg.APIToken}
	client, err := jira.NewClient(tp.Client(), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	return &JiraClient{client: client, project: cfg.ProjectKey, issueType: cfg.IssueType}, nil
}

// CreateTicket files the ticket and returns its Jira key.
func (c *JiraClient) CreateTicket(ctx context.Context, t Ticket) (string, error) {
	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: c.project},
			Type:        jira.IssueType{Name: c.issueType},
			Summary:     t.Title,
			Description: t.Body,
		},
	}

	created, _, err := c.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return "", fmt.Errorf("create jira issue: %w", err)
	}
	return created.Key, nil
}
