package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goblinsan/jira-util/pkg/types"
	"golang.org/x/oauth2"
)

const defaultPageSize = 50

// Options configures a Client.
type Options struct {
	// BaseURL is the root of the Jira instance, e.g. https://acme.atlassian.net.
	BaseURL string
	// Username selects Basic auth with Token as the password or API token.
	// When empty, Token is sent as a Bearer personal access token.
	Username string
	Token    string
	PageSize int
	// Cloud selects the /rest/api/3/search/jql endpoint. It is implied for
	// atlassian.net hosts.
	Cloud bool
	// HTTPClient overrides the transport. Auth is still applied per request
	// when Username is set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the Jira REST API. It serves both Jira Cloud and
// Server/Data Center; Cloud is detected from the host name.
type Client struct {
	baseURL    string
	username   string
	token      string
	pageSize   int
	cloud      bool
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a new Jira client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		username: opts.Username,
		token:    opts.Token,
		pageSize: opts.PageSize,
		cloud:    opts.Cloud || strings.Contains(opts.BaseURL, "atlassian.net"),
		log:      opts.Logger,
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	switch {
	case opts.HTTPClient != nil:
		c.httpClient = opts.HTTPClient
	case c.username == "" && c.token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
		c.httpClient = oauth2.NewClient(context.Background(), ts)
		c.httpClient.Timeout = 30 * time.Second
	default:
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SearchByLabel returns all issues carrying label in rank order.
func (c *Client) SearchByLabel(ctx context.Context, label string) ([]types.Issue, error) {
	jql := LabelJQL(label)
	c.log.Debug("Searching Jira issues", "jql", jql, "cloud", c.cloud)

	var raw []apiIssue
	var err error
	if c.cloud {
		raw, err = c.searchJQL(ctx, jql)
	} else {
		raw, err = c.search(ctx, jql)
	}
	if err != nil {
		return nil, err
	}

	issues := make([]types.Issue, 0, len(raw))
	for _, ri := range raw {
		issues = append(issues, ri.toIssue())
	}
	c.log.Debug("Jira issues fetched", "count", len(issues))
	return issues, nil
}

func (c *Client) search(ctx context.Context, jql string) ([]apiIssue, error) {
	var all []apiIssue
	startAt := 0
	for {
		req := searchRequest{JQL: jql, StartAt: startAt, MaxResults: c.pageSize, Fields: searchFields}
		var resp searchResponse
		if err := c.do(ctx, http.MethodPost, "/rest/api/2/search", req, &resp); err != nil {
			return nil, fmt.Errorf("failed to search issues: %w", err)
		}
		all = append(all, resp.Issues...)
		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || startAt >= resp.Total {
			return all, nil
		}
		c.log.Debug("Jira pagination", "issuesSoFar", len(all), "total", resp.Total)
	}
}

func (c *Client) searchJQL(ctx context.Context, jql string) ([]apiIssue, error) {
	var all []apiIssue
	token := ""
	for {
		req := jqlSearchRequest{JQL: jql, MaxResults: c.pageSize, Fields: searchFields, NextPageToken: token}
		var resp jqlSearchResponse
		if err := c.do(ctx, http.MethodPost, "/rest/api/3/search/jql", req, &resp); err != nil {
			return nil, fmt.Errorf("failed to search issues: %w", err)
		}
		all = append(all, resp.Issues...)
		if resp.IsLast || resp.NextPageToken == "" {
			return all, nil
		}
		token = resp.NextPageToken
		c.log.Debug("Jira pagination", "issuesSoFar", len(all))
	}
}

// GetIssue loads a single issue. A missing issue yields an error wrapping
// types.ErrIssueNotFound.
func (c *Client) GetIssue(ctx context.Context, key string) (*types.Issue, error) {
	path := "/rest/api/2/issue/" + url.PathEscape(key) + "?fields=" + strings.Join(searchFields, ",")
	var ri apiIssue
	if err := c.do(ctx, http.MethodGet, path, nil, &ri); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", key, types.ErrIssueNotFound)
		}
		return nil, fmt.Errorf("failed to get issue %s: %w", key, err)
	}
	issue := ri.toIssue()
	return &issue, nil
}

// GetTransitions lists the transitions currently available on an issue.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]types.Transition, error) {
	var resp transitionsResponse
	if err := c.do(ctx, http.MethodGet, transitionsPath(key), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get transitions for %s: %w", key, err)
	}
	out := make([]types.Transition, 0, len(resp.Transitions))
	for _, t := range resp.Transitions {
		tr := types.Transition{ID: t.ID, Name: t.Name}
		if t.To != nil {
			tr.To = t.To.Name
		}
		out = append(out, tr)
	}
	return out, nil
}

// ExecuteTransition applies a transition by ID.
func (c *Client) ExecuteTransition(ctx context.Context, key, transitionID string) error {
	var body transitionRequest
	body.Transition.ID = transitionID
	if err := c.do(ctx, http.MethodPost, transitionsPath(key), body, nil); err != nil {
		return fmt.Errorf("failed to transition %s: %w", key, err)
	}
	c.log.Debug("Executed transition", "key", key, "transition", transitionID)
	return nil
}

// SetLabels replaces the full label set of an issue.
func (c *Client) SetLabels(ctx context.Context, key string, labels []string) error {
	var body labelsUpdate
	body.Fields.Labels = labels
	if body.Fields.Labels == nil {
		body.Fields.Labels = []string{}
	}
	if err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), body, nil); err != nil {
		return fmt.Errorf("failed to update labels on %s: %w", key, err)
	}
	c.log.Debug("Updated labels", "key", key, "labels", labels)
	return nil
}

// Myself returns the user the credentials belong to.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/myself", nil, &u); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &u, nil
}

// LabelJQL builds the equality query used for fixture searches.
func LabelJQL(label string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(label)
	return fmt.Sprintf(`labels = "%s" ORDER BY Rank ASC`, escaped)
}

func transitionsPath(key string) string {
	return "/rest/api/2/issue/" + url.PathEscape(key) + "/transitions"
}

func (ri apiIssue) toIssue() types.Issue {
	issue := types.Issue{
		Key:     ri.Key,
		Summary: ri.Fields.Summary,
		Labels:  ri.Fields.Labels,
	}
	if ri.Fields.Status != nil {
		issue.Status = ri.Fields.Status.Name
	}
	if ri.Fields.IssueType != nil {
		issue.Type = ri.Fields.IssueType.Name
	}
	if ri.Fields.Parent != nil {
		issue.Parent = ri.Fields.Parent.Key
	}
	return issue
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
		var jiraErr errorResponse
		if json.Unmarshal(respBody, &jiraErr) == nil {
			apiErr.Messages = append(apiErr.Messages, jiraErr.ErrorMessages...)
			fields := make([]string, 0, len(jiraErr.Errors))
			for field := range jiraErr.Errors {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				apiErr.Messages = append(apiErr.Messages, field+": "+jiraErr.Errors[field])
			}
		}
		if len(apiErr.Messages) == 0 {
			apiErr.Body = strings.TrimSpace(string(respBody))
		}
		if resp.StatusCode == http.StatusUnauthorized {
			apiErr.Messages = append(apiErr.Messages, "authentication failed: check the credentials for "+c.baseURL)
		}
		return apiErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}
