package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goblinsan/jira-util/pkg/types"
	"github.com/google/go-github/v66/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// DefaultStatusField is the single-select project field used as the workflow status.
const DefaultStatusField = "Status"

// Options configures a Repository.
type Options struct {
	Token string
	// Repository is "owner/name".
	Repository string
	// Project is the title of the Projects V2 board whose status field acts
	// as the workflow.
	Project     string
	StatusField string
	// BaseURL and GraphQLURL override the API endpoints (GitHub Enterprise, tests).
	BaseURL    string
	GraphQLURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Repository maps fixture operations onto GitHub issues and a Projects V2
// board. Issue keys are "#<number>"; transitions are the status field's
// options.
type Repository struct {
	REST    *github.Client
	GraphQL *githubv4.Client

	owner       string
	name        string
	project     string
	statusField string
	log         *slog.Logger

	board *board
}

// board caches the project and status field metadata for one run.
type board struct {
	projectID githubv4.ID
	fieldID   githubv4.ID
	options   []statusOption
}

type statusOption struct {
	ID   string
	Name string
}

// NewRepository creates a GitHub-backed repository with both REST and
// GraphQL clients.
func NewRepository(opts Options) (*Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(opts.Repository), "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q: expected owner/name", opts.Repository)
	}
	if strings.TrimSpace(opts.Project) == "" {
		return nil, errors.New("project title is required for the github backend")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.Token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
			httpClient = oauth2.NewClient(context.Background(), ts)
		} else {
			httpClient = http.DefaultClient
		}
	}

	r := &Repository{
		REST:        github.NewClient(httpClient),
		GraphQL:     githubv4.NewClient(httpClient),
		owner:       owner,
		name:        name,
		project:     strings.TrimSpace(opts.Project),
		statusField: opts.StatusField,
		log:         opts.Logger,
	}
	if r.statusField == "" {
		r.statusField = DefaultStatusField
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if opts.BaseURL != "" {
		base := strings.TrimRight(opts.BaseURL, "/") + "/"
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		r.REST.BaseURL = u
	}
	if opts.GraphQLURL != "" {
		r.GraphQL = githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient)
	}
	return r, nil
}

// GetAuthenticatedUser returns information about the authenticated user.
func (r *Repository) GetAuthenticatedUser(ctx context.Context) (*github.User, error) {
	user, _, err := r.REST.Users.Get(ctx, "")
	return user, err
}

// FullName returns "owner/name".
func (r *Repository) FullName() string {
	return r.owner + "/" + r.name
}

type issueNode struct {
	ID     githubv4.ID
	Number int
	Title  string
	Labels struct {
		Nodes []struct {
			Name string
		}
	} `graphql:"labels(first: 50)"`
	IssueType *struct {
		Name string
	}
	Parent *struct {
		Number int
	}
	ProjectItems struct {
		Nodes []projectItemNode
	} `graphql:"projectItems(first: 20)"`
}

type projectItemNode struct {
	ID      githubv4.ID
	Project struct {
		ID    githubv4.ID
		Title string
	}
	FieldValueByName struct {
		SingleSelect struct {
			Name     string
			OptionID string
		} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	} `graphql:"fieldValueByName(name: $field)"`
}

// SearchByLabel returns the repository's issues carrying label, oldest first.
func (r *Repository) SearchByLabel(ctx context.Context, label string) ([]types.Issue, error) {
	var q struct {
		Repository struct {
			Issues struct {
				Nodes    []issueNode
				PageInfo struct {
					HasNextPage bool
					EndCursor   githubv4.String
				}
			} `graphql:"issues(first: 50, after: $cursor, labels: $labels, orderBy: {field: CREATED_AT, direction: ASC})"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]interface{}{
		"owner":  githubv4.String(r.owner),
		"name":   githubv4.String(r.name),
		"labels": []githubv4.String{githubv4.String(label)},
		"field":  githubv4.String(r.statusField),
		"cursor": (*githubv4.String)(nil),
	}

	var issues []types.Issue
	for {
		if err := r.GraphQL.Query(ctx, &q, vars); err != nil {
			return nil, fmt.Errorf("failed to search issues with label %q: %w", label, err)
		}
		for _, n := range q.Repository.Issues.Nodes {
			issues = append(issues, r.toIssue(n))
		}
		if !q.Repository.Issues.PageInfo.HasNextPage {
			break
		}
		cursor := q.Repository.Issues.PageInfo.EndCursor
		vars["cursor"] = &cursor
	}
	r.log.Debug("GitHub issues fetched", "repository", r.FullName(), "label", label, "count", len(issues))
	return issues, nil
}

// GetIssue loads an issue by key. A missing issue yields an error wrapping
// types.ErrIssueNotFound.
func (r *Repository) GetIssue(ctx context.Context, key string) (*types.Issue, error) {
	number, err := ParseIssueNumber(key)
	if err != nil {
		return nil, err
	}

	gi, resp, err := r.REST.Issues.Get(ctx, r.owner, r.name, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", key, types.ErrIssueNotFound)
		}
		return nil, fmt.Errorf("failed to get issue %s: %w", key, err)
	}

	issue := types.Issue{
		Key:     IssueKey(number),
		Summary: gi.GetTitle(),
	}
	for _, l := range gi.Labels {
		issue.Labels = append(issue.Labels, l.GetName())
	}

	node, err := r.issueNode(ctx, number)
	if err != nil {
		return nil, err
	}
	issue.Status = r.statusOf(node)
	if node.IssueType != nil {
		issue.Type = node.IssueType.Name
	}
	if node.Parent != nil {
		issue.Parent = IssueKey(node.Parent.Number)
	}
	return &issue, nil
}

// GetTransitions exposes every option of the board's status field as a
// transition named `Move to "<option>"`.
func (r *Repository) GetTransitions(ctx context.Context, key string) ([]types.Transition, error) {
	if _, err := ParseIssueNumber(key); err != nil {
		return nil, err
	}
	b, err := r.loadBoard(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Transition, 0, len(b.options))
	for _, opt := range b.options {
		out = append(out, types.Transition{ID: opt.ID, Name: TransitionName(opt.Name), To: opt.Name})
	}
	return out, nil
}

// ExecuteTransition sets the issue's status field to the option transitionID,
// adding the issue to the board first when it is not on it yet.
func (r *Repository) ExecuteTransition(ctx context.Context, key, transitionID string) error {
	number, err := ParseIssueNumber(key)
	if err != nil {
		return err
	}
	b, err := r.loadBoard(ctx)
	if err != nil {
		return err
	}
	node, err := r.issueNode(ctx, number)
	if err != nil {
		return err
	}

	itemID := r.boardItem(node)
	if itemID == nil {
		var m struct {
			AddProjectV2ItemById struct {
				Item struct {
					ID githubv4.ID
				}
			} `graphql:"addProjectV2ItemById(input: $input)"`
		}
		input := githubv4.AddProjectV2ItemByIdInput{ProjectID: b.projectID, ContentID: node.ID}
		if err := r.GraphQL.Mutate(ctx, &m, input, nil); err != nil {
			return fmt.Errorf("failed to add %s to project %q: %w", key, r.project, err)
		}
		itemID = m.AddProjectV2ItemById.Item.ID
		r.log.Debug("Added issue to project", "key", key, "project", r.project)
	}

	var m struct {
		UpdateProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID githubv4.ID
			}
		} `graphql:"updateProjectV2ItemFieldValue(input: $input)"`
	}
	optionID := githubv4.String(transitionID)
	input := githubv4.UpdateProjectV2ItemFieldValueInput{
		ProjectID: b.projectID,
		ItemID:    itemID,
		FieldID:   b.fieldID,
		Value:     githubv4.ProjectV2FieldValue{SingleSelectOptionID: &optionID},
	}
	if err := r.GraphQL.Mutate(ctx, &m, input, nil); err != nil {
		return fmt.Errorf("failed to update status of %s: %w", key, err)
	}
	return nil
}

// SetLabels replaces the issue's labels.
func (r *Repository) SetLabels(ctx context.Context, key string, labels []string) error {
	number, err := ParseIssueNumber(key)
	if err != nil {
		return err
	}
	if labels == nil {
		labels = []string{}
	}
	if _, _, err := r.REST.Issues.ReplaceLabelsForIssue(ctx, r.owner, r.name, number, labels); err != nil {
		return fmt.Errorf("failed to update labels on %s: %w", key, err)
	}
	r.log.Debug("Updated labels", "key", key, "labels", labels)
	return nil
}

func (r *Repository) issueNode(ctx context.Context, number int) (*issueNode, error) {
	var q struct {
		Repository struct {
			Issue *issueNode `graphql:"issue(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]interface{}{
		"owner":  githubv4.String(r.owner),
		"name":   githubv4.String(r.name),
		"number": githubv4.Int(number),
		"field":  githubv4.String(r.statusField),
	}
	if err := r.GraphQL.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("failed to load issue %s: %w", IssueKey(number), err)
	}
	if q.Repository.Issue == nil {
		return nil, fmt.Errorf("%s: %w", IssueKey(number), types.ErrIssueNotFound)
	}
	return q.Repository.Issue, nil
}

// loadBoard resolves the project and its status field once per Repository.
func (r *Repository) loadBoard(ctx context.Context) (*board, error) {
	if r.board != nil {
		return r.board, nil
	}

	var pq struct {
		Repository struct {
			ProjectsV2 struct {
				Nodes []struct {
					ID    githubv4.ID
					Title string
				}
			} `graphql:"projectsV2(first: 20, query: $title)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]interface{}{
		"owner": githubv4.String(r.owner),
		"name":  githubv4.String(r.name),
		"title": githubv4.String(r.project),
	}
	if err := r.GraphQL.Query(ctx, &pq, vars); err != nil {
		return nil, fmt.Errorf("failed to find project %q: %w", r.project, err)
	}
	var projectID githubv4.ID
	for _, p := range pq.Repository.ProjectsV2.Nodes {
		if strings.EqualFold(p.Title, r.project) {
			projectID = p.ID
			break
		}
	}
	if projectID == nil {
		return nil, fmt.Errorf("project %q not found in %s", r.project, r.FullName())
	}

	var fq struct {
		Node struct {
			ProjectV2 struct {
				Field struct {
					SingleSelect struct {
						ID      githubv4.ID
						Options []struct {
							ID   string
							Name string
						}
					} `graphql:"... on ProjectV2SingleSelectField"`
				} `graphql:"field(name: $field)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $id)"`
	}
	fvars := map[string]interface{}{
		"id":    projectID,
		"field": githubv4.String(r.statusField),
	}
	if err := r.GraphQL.Query(ctx, &fq, fvars); err != nil {
		return nil, fmt.Errorf("failed to load field %q of project %q: %w", r.statusField, r.project, err)
	}
	field := fq.Node.ProjectV2.Field.SingleSelect
	if field.ID == nil {
		return nil, fmt.Errorf("project %q has no single-select field %q", r.project, r.statusField)
	}

	b := &board{projectID: projectID, fieldID: field.ID}
	for _, o := range field.Options {
		b.options = append(b.options, statusOption{ID: o.ID, Name: o.Name})
	}
	r.board = b
	r.log.Debug("Loaded project board", "project", r.project, "field", r.statusField, "options", len(b.options))
	return b, nil
}

func (r *Repository) onBoard(item projectItemNode) bool {
	if r.board != nil {
		return item.Project.ID == r.board.projectID
	}
	return strings.EqualFold(item.Project.Title, r.project)
}

func (r *Repository) boardItem(n *issueNode) githubv4.ID {
	for _, item := range n.ProjectItems.Nodes {
		if r.onBoard(item) {
			return item.ID
		}
	}
	return nil
}

func (r *Repository) statusOf(n *issueNode) string {
	for _, item := range n.ProjectItems.Nodes {
		if r.onBoard(item) {
			return item.FieldValueByName.SingleSelect.Name
		}
	}
	return ""
}

func (r *Repository) toIssue(n issueNode) types.Issue {
	issue := types.Issue{
		Key:     IssueKey(n.Number),
		Summary: n.Title,
		Status:  r.statusOf(&n),
	}
	for _, l := range n.Labels.Nodes {
		issue.Labels = append(issue.Labels, l.Name)
	}
	if n.IssueType != nil {
		issue.Type = n.IssueType.Name
	}
	if n.Parent != nil {
		issue.Parent = IssueKey(n.Parent.Number)
	}
	return issue
}

// IssueKey formats an issue number as a key.
func IssueKey(number int) string {
	return "#" + strconv.Itoa(number)
}

// TransitionName is the display name of the transition into a status option.
func TransitionName(option string) string {
	return `Move to "` + option + `"`
}

// ParseIssueNumber accepts "12", "#12" and "owner/repo#12".
func ParseIssueNumber(key string) (int, error) {
	s := strings.TrimSpace(key)
	if i := strings.LastIndex(s, "#"); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid issue key %q: expected #<number>", key)
	}
	return n, nil
}
