package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/goblinsan/jira-util/pkg/render"
	"github.com/goblinsan/jira-util/pkg/types"
)

// fakeRepo is an in-memory engine.Repository. Executing a transition moves
// the issue to the transition's To status.
type fakeRepo struct {
	issues   map[string]*types.Issue
	order    []string
	calls    []string
	setError error
}

func newFakeRepo(issues ...types.Issue) *fakeRepo {
	r := &fakeRepo{issues: map[string]*types.Issue{}}
	for i := range issues {
		issue := issues[i]
		r.issues[issue.Key] = &issue
		r.order = append(r.order, issue.Key)
	}
	return r
}

func (r *fakeRepo) SearchByLabel(_ context.Context, label string) ([]types.Issue, error) {
	r.calls = append(r.calls, "search:"+label)
	var out []types.Issue
	for _, k := range r.order {
		if r.issues[k].HasLabel(label) {
			out = append(out, *r.issues[k])
		}
	}
	return out, nil
}

func (r *fakeRepo) GetIssue(_ context.Context, key string) (*types.Issue, error) {
	r.calls = append(r.calls, "get:"+key)
	issue, ok := r.issues[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, types.ErrIssueNotFound)
	}
	cp := *issue
	return &cp, nil
}

func (r *fakeRepo) GetTransitions(_ context.Context, key string) ([]types.Transition, error) {
	r.calls = append(r.calls, "transitions:"+key)
	return []types.Transition{
		{ID: "1", Name: `Back to "To Do"`, To: "To Do"},
		{ID: "2", Name: `Finish to "Done"`, To: "Done"},
	}, nil
}

func (r *fakeRepo) ExecuteTransition(_ context.Context, key, id string) error {
	r.calls = append(r.calls, "execute:"+key+":"+id)
	to := map[string]string{"1": "To Do", "2": "Done"}[id]
	r.issues[key].Status = to
	return nil
}

func (r *fakeRepo) SetLabels(_ context.Context, key string, labels []string) error {
	r.calls = append(r.calls, "labels:"+key+":"+strings.Join(labels, ","))
	if r.setError != nil {
		return r.setError
	}
	r.issues[key].Labels = labels
	return nil
}

func fixtureIssue(key, status, start, expected string) types.Issue {
	return types.Issue{
		Key:     key,
		Status:  status,
		Summary: fmt.Sprintf("I was in %s - expected to be in %s", start, expected),
		Labels:  []string{"rule-testing"},
	}
}

func TestParseChain(t *testing.T) {
	tests := []struct {
		args      []string
		wantSteps []step
		wantLabel string
		wantErr   bool
	}{
		{args: []string{"reset"}, wantSteps: []step{stepReset}},
		{args: []string{"r", "a", "t"}, wantSteps: []step{stepReset, stepAssert, stepTrigger}},
		{args: []string{"assert", "my-set"}, wantSteps: []step{stepAssert}, wantLabel: "my-set"},
		{args: []string{"R", "my-set", "T"}, wantSteps: []step{stepReset, stepTrigger}, wantLabel: "my-set"},
		{args: []string{"bogus"}, wantErr: true},
		{args: []string{"t", "extra"}, wantErr: true},
		{args: []string{"r", "one", "a", "two"}, wantErr: true},
		{args: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			got, err := parseChain(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %v", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fmt.Sprint(got.steps) != fmt.Sprint(tt.wantSteps) {
				t.Errorf("expected steps %v, got %v", tt.wantSteps, got.steps)
			}
			if got.label != tt.wantLabel {
				t.Errorf("expected label %q, got %q", tt.wantLabel, got.label)
			}
		})
	}
}

func TestResolveLabel(t *testing.T) {
	resetOnly := chain{steps: []step{stepReset}}
	withTrigger := chain{steps: []step{stepReset, stepTrigger}}

	cases := []struct {
		name  string
		c     chain
		opts  chainOptions
		want  string
		isErr bool
	}{
		{"positional wins", chain{steps: []step{stepReset}, label: "pos"}, chainOptions{testSetLabel: "tsl"}, "pos", false},
		{"tsl", withTrigger, chainOptions{testSetLabel: "tsl", triggerLabels: []string{"go"}}, "tsl", false},
		{"-l without trigger", resetOnly, chainOptions{triggerLabels: []string{" set "}}, "set", false},
		{"-l with trigger is not the set", withTrigger, chainOptions{triggerLabels: []string{"go"}}, "rule-testing", false},
		{"default", resetOnly, chainOptions{}, "rule-testing", false},
		{"too many", resetOnly, chainOptions{triggerLabels: []string{"a,b"}}, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveLabel(tc.c, tc.opts, "rule-testing")
			if tc.isErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRunChain_ResetTriggerAssert(t *testing.T) {
	repo := newFakeRepo(
		fixtureIssue("T-1", "Done", "To Do", "Done"),
		types.Issue{Key: "TAPS-212", Labels: []string{"run-rules"}},
	)
	var out bytes.Buffer
	c := chain{steps: []step{stepReset, stepTrigger, stepAssert}}
	opts := chainOptions{triggerKey: "TAPS-212", triggerLabels: []string{"run-rules"}}

	err := runChain(context.Background(), repo, c, "rule-testing", opts, render.NewPrinter(&out, render.FormatText))

	// The reset put T-1 in "To Do" and nothing moved it on, so the assertion fails.
	if !errors.Is(err, errFixturesFailed) {
		t.Fatalf("expected errFixturesFailed, got %v", err)
	}
	want := []string{
		"search:rule-testing",
		"transitions:T-1",
		"execute:T-1:1",
		"get:TAPS-212",
		"labels:TAPS-212:",
		"labels:TAPS-212:run-rules",
		"search:rule-testing",
	}
	if strings.Join(repo.calls, "|") != strings.Join(want, "|") {
		t.Errorf("expected calls %v, got %v", want, repo.calls)
	}
	for _, s := range []string{"Reset fixtures", "Trigger TAPS-212", "Assert fixtures", "1 failed"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("expected %q in output:\n%s", s, out.String())
		}
	}
}

func TestRunChain_AllPassing(t *testing.T) {
	repo := newFakeRepo(fixtureIssue("T-1", "Done", "To Do", "Done"))
	var out bytes.Buffer

	err := runChain(context.Background(), repo, chain{steps: []step{stepAssert}}, "rule-testing", chainOptions{}, render.NewPrinter(&out, render.FormatJSON))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !strings.Contains(out.String(), `"overall_success": true`) {
		t.Errorf("expected JSON report, got:\n%s", out.String())
	}
}

func TestRunChain_TriggerErrorStopsChain(t *testing.T) {
	repo := newFakeRepo(fixtureIssue("T-1", "Done", "To Do", "Done"))
	var out bytes.Buffer
	c := chain{steps: []step{stepTrigger, stepAssert}}

	err := runChain(context.Background(), repo, c, "rule-testing", chainOptions{triggerKey: "MISSING-1", triggerLabels: []string{"go"}}, render.NewPrinter(&out, render.FormatText))
	if !errors.Is(err, types.ErrIssueNotFound) {
		t.Fatalf("expected issue-not-found error, got %v", err)
	}
	for _, call := range repo.calls {
		if strings.HasPrefix(call, "search:") {
			t.Errorf("assert step should not run after a failed trigger, calls: %v", repo.calls)
		}
	}
}

func TestRunChain_EmptyTriggerLabels(t *testing.T) {
	repo := newFakeRepo(types.Issue{Key: "TAPS-212"})
	var out bytes.Buffer

	err := runChain(context.Background(), repo, chain{steps: []step{stepTrigger}}, "rule-testing", chainOptions{triggerKey: "TAPS-212"}, render.NewPrinter(&out, render.FormatText))
	if err == nil || !strings.Contains(err.Error(), "no valid labels provided") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Errorf("expected no repository calls, got %v", repo.calls)
	}
}
