package jira

import (
	"fmt"
	"strings"
)

// searchFields are the issue fields requested by label searches.
var searchFields = []string{"summary", "status", "labels", "issuetype", "parent"}

// searchRequest is the POST body for /rest/api/2/search.
type searchRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

// searchResponse is the response from /rest/api/2/search.
type searchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []apiIssue `json:"issues"`
}

// jqlSearchRequest is the POST body for the Cloud /rest/api/3/search/jql endpoint.
type jqlSearchRequest struct {
	JQL           string   `json:"jql"`
	MaxResults    int      `json:"maxResults"`
	Fields        []string `json:"fields"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// jqlSearchResponse is the response from /rest/api/3/search/jql.
type jqlSearchResponse struct {
	Issues        []apiIssue `json:"issues"`
	NextPageToken string     `json:"nextPageToken"`
	IsLast        bool       `json:"isLast"`
}

type apiIssue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary   string     `json:"summary"`
	Status    *named     `json:"status"`
	Labels    []string   `json:"labels"`
	IssueType *named     `json:"issuetype"`
	Parent    *parentRef `json:"parent"`
}

type named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type parentRef struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type transitionsResponse struct {
	Transitions []apiTransition `json:"transitions"`
}

type apiTransition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   *named `json:"to"`
}

type transitionRequest struct {
	Transition struct {
		ID string `json:"id"`
	} `json:"transition"`
}

type labelsUpdate struct {
	Fields struct {
		Labels []string `json:"labels"`
	} `json:"fields"`
}

// User is the account behind the configured credentials.
type User struct {
	AccountID    string `json:"accountId,omitempty" yaml:"account_id,omitempty"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	DisplayName  string `json:"displayName" yaml:"display_name"`
	EmailAddress string `json:"emailAddress,omitempty" yaml:"email,omitempty"`
}

// errorResponse is the standard Jira error body.
type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Messages   []string
	Body       string
}

func (e *APIError) Error() string {
	detail := strings.Join(e.Messages, "; ")
	if detail == "" {
		detail = e.Body
	}
	if detail == "" {
		return fmt.Sprintf("jira API error (%d) on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("jira API error (%d) on %s %s: %s", e.StatusCode, e.Method, e.Path, detail)
}
