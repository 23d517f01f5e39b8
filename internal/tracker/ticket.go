// Package tracker files bug-tracker tickets pre-filled from reported
// issues. The comparison core never calls into this package.
package tracker

import (
	"context"
	"fmt"

	"visual-tracer/internal/compare"
)

// Ticket is a tracker-agnostic issue description.
type Ticket struct {
	Title string
	Body  string
}

// Client files a ticket and returns a human-usable reference (key or URL).
type Client interface {
	CreateTicket(ctx context.Context, t Ticket) (string, error)
}

// BuildTicket pre-fills a ticket from one reported issue.
func BuildTicket(jobID, pageURL string, index int, issue compare.Issue) Ticket {
	title := fmt.Sprintf("[Visual] %s at %s on %s", issue.Category, issue.Location, pageURL)
	body := fmt.Sprintf(
		"Visual difference detected by comparison run %s.\n\n"+
			"Page: %s\n"+
			"Issue #%d: %s\n"+
			"Location: %s (%d,%d), size %dx%dpx\n"+
			"Severity: %.1f\n",
		jobID, pageURL, index+1, issue.Category,
		issue.Location, issue.X, issue.Y, issue.Width, issue.Height,
		issue.Severity)
	if issue.Detail != "" {
		body += fmt.Sprintf("Detail: %s\n", issue.Detail)
	}
	return Ticket{Title: title, Body: body}
}
