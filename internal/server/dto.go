package server

import (
	"strings"

	"visual-tracer/internal/classify"
)

type compareRequest struct {
	URL             string `form:"url" validate:"required,url"`
	Viewport        string `form:"viewport" validate:"omitempty,viewport"`
	FullPage        bool   `form:"full_page"`
	WaitTime        int    `form:"wait_time" validate:"omitempty,min=0,max=30"`
	HideSelectors   string `form:"hide_selectors"`
	RemoveSelectors string `form:"remove_selectors"`
	MaxHeight       int    `form:"max_height" validate:"omitempty,min=0"`
	Sensitivity     int    `form:"sensitivity" validate:"omitempty,min=0,max=100"`
	Filters         string `form:"filters"`
}

// filterSet parses the comma-separated filters field. Empty means all
// categories enabled; unknown names are rejected by the handler.
func (r compareRequest) filterSet() (classify.FilterSet, []string) {
	if strings.TrimSpace(r.Filters) == "" {
		return classify.AllFilters(), nil
	}
	set := classify.FilterSet{}
	var unknown []string
	for _, name := range strings.Split(r.Filters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fc := classify.FilterCategory(name)
		switch fc {
		case classify.FilterLayoutStructure, classify.FilterTextContent, classify.FilterColorsStyles:
			set[fc] = true
		default:
			unknown = append(unknown, name)
		}
	}
	return set, unknown
}

func (r compareRequest) hideSelectors() []string { return splitList(r.HideSelectors) }
func (r compareRequest) removeSelectors() []string { return splitList(r.RemoveSelectors) }

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type rollbackRequest struct {
	URL       string `json:"url" validate:"required,url"`
	VersionID string `json:"version_id" validate:"required"`
}

type deleteBaselineRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type ticketRequest struct {
	JobID      string `json:"job_id" validate:"required,uuid4"`
	IssueIndex int    `json:"issue_index" validate:"min=0"`
	Tracker    string `json:"tracker" validate:"required,oneof=jira github"`
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type ticketResponse struct {
	Tracker string `json:"tracker"`
	Ref     string `json:"ref"`
}
