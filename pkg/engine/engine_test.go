package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/goblinsan/jira-util/pkg/types"
)

// mockRepo implements Repository for testing. Executing a transition moves
// the issue to the transition's To status.
type mockRepo struct {
	issues      []types.Issue
	transitions map[string][]types.Transition

	searchErr      error
	getIssueErr    error
	transitionErrs map[string]error
	executeErrs    map[string]error
	setLabelsErr   error

	searches       []string
	transitionGets []string
	executed       []string
	labelUpdates   [][]string
}

func newMockRepo(issues ...types.Issue) *mockRepo {
	return &mockRepo{
		issues:         issues,
		transitions:    map[string][]types.Transition{},
		transitionErrs: map[string]error{},
		executeErrs:    map[string]error{},
	}
}

// standardWorkflow returns transitions reachable from any status.
func standardWorkflow() []types.Transition {
	return []types.Transition{
		{ID: "11", Name: `Jump to "To Do"`, To: "To Do"},
		{ID: "21", Name: `Start "In Progress"`, To: "In Progress"},
		{ID: "31", Name: `Finish to "Done"`, To: "Done"},
	}
}

func (m *mockRepo) find(key string) *types.Issue {
	for i := range m.issues {
		if m.issues[i].Key == key {
			return &m.issues[i]
		}
	}
	return nil
}

func (m *mockRepo) SearchByLabel(_ context.Context, label string) ([]types.Issue, error) {
	m.searches = append(m.searches, label)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []types.Issue
	for _, issue := range m.issues {
		if issue.HasLabel(label) {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (m *mockRepo) GetIssue(_ context.Context, key string) (*types.Issue, error) {
	if m.getIssueErr != nil {
		return nil, m.getIssueErr
	}
	issue := m.find(key)
	if issue == nil {
		return nil, fmt.Errorf("%s: %w", key, types.ErrIssueNotFound)
	}
	cp := *issue
	cp.Labels = append([]string(nil), issue.Labels...)
	return &cp, nil
}

func (m *mockRepo) GetTransitions(_ context.Context, key string) ([]types.Transition, error) {
	m.transitionGets = append(m.transitionGets, key)
	if err := m.transitionErrs[key]; err != nil {
		return nil, err
	}
	return m.transitionsFor(key), nil
}

func (m *mockRepo) transitionsFor(key string) []types.Transition {
	if ts, ok := m.transitions[key]; ok {
		return ts
	}
	return standardWorkflow()
}

func (m *mockRepo) ExecuteTransition(_ context.Context, key, transitionID string) error {
	m.executed = append(m.executed, key+":"+transitionID)
	if err := m.executeErrs[key]; err != nil {
		return err
	}
	for _, t := range m.transitionsFor(key) {
		if t.ID == transitionID {
			if issue := m.find(key); issue != nil {
				issue.Status = t.To
			}
			return nil
		}
	}
	return errors.New("unknown transition " + transitionID)
}

func (m *mockRepo) SetLabels(_ context.Context, key string, labels []string) error {
	m.labelUpdates = append(m.labelUpdates, append([]string(nil), labels...))
	if m.setLabelsErr != nil {
		return m.setLabelsErr
	}
	if issue := m.find(key); issue != nil {
		issue.Labels = append([]string(nil), labels...)
	}
	return nil
}

func (m *mockRepo) mutations() int {
	return len(m.executed) + len(m.labelUpdates)
}

func fixture(key, status, summary string) types.Issue {
	return types.Issue{Key: key, Status: status, Summary: summary, Labels: []string{"rule-testing"}, Type: "Story"}
}

func summaryFor(start, expected string) string {
	return fmt.Sprintf("I was in %s - expected to be in %s", start, expected)
}
