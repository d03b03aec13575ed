package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goblinsan/jira-util/pkg/summary"
	"github.com/goblinsan/jira-util/pkg/types"
	"github.com/goblinsan/jira-util/pkg/workflow"
	"github.com/google/uuid"
)

// RunReset moves every issue carrying label into the start status encoded
// in its summary. Each issue yields exactly one outcome; a failure on one
// issue never stops the batch. An error is returned only for an invalid
// label or when the label search itself fails.
func RunReset(ctx context.Context, repo Repository, label string, opts ResetOptions) (*Report, error) {
	label, err := validateLabel(label)
	if err != nil {
		return nil, err
	}
	log := loggerOrDefault(opts.Logger).With("mode", ModeReset, "label", label)

	issues, err := fetchFixtures(ctx, repo, label)
	if err != nil {
		return nil, err
	}
	log.Info("Starting reset", "issues", len(issues))

	forceVia := strings.TrimSpace(opts.ForceVia)
	outcomes := make([]Outcome, 0, len(issues))
	for _, issue := range issues {
		o := resetIssue(ctx, repo, issue, forceVia, log)
		log.Info("Processed issue", "key", o.Key, "status", issue.Status, "outcome", o.Kind, "reason", o.Reason)
		outcomes = append(outcomes, o)
	}

	report := Aggregate(ModeReset, label, outcomes)
	report.RunID = uuid.NewString()
	return report, nil
}

func newOutcome(issue types.Issue) Outcome {
	return Outcome{
		Key:       issue.Key,
		Summary:   issue.Summary,
		Actual:    strings.TrimSpace(issue.Status),
		IssueType: issue.Type,
		Parent:    issue.Parent,
	}
}

func resetIssue(ctx context.Context, repo Repository, issue types.Issue, forceVia string, log *slog.Logger) Outcome {
	o := newOutcome(issue)

	p, ok := summary.Parse(issue.Summary)
	if !ok {
		o.Kind = KindPatternMismatch
		o.Reason = summary.MismatchReason
		return o
	}
	o.Context, o.Start, o.Expected = p.Context, p.Start, p.Expected

	if o.Actual == p.Start {
		if forceVia == "" {
			o.Kind = KindSkipped
			o.Reason = fmt.Sprintf("already in target status %q", p.Start)
			return o
		}
		log.Debug("Forcing update via intermediate status", "key", issue.Key, "via", forceVia)
		if kind, reason := transitionTo(ctx, repo, issue.Key, forceVia, log); kind != KindUpdated {
			o.Kind = kind
			o.Reason = "intermediate step: " + reason
			return o
		}
	}

	o.Kind, o.Reason = transitionTo(ctx, repo, issue.Key, p.Start, log)
	return o
}

// transitionTo fetches the issue's transitions, resolves status and executes it.
func transitionTo(ctx context.Context, repo Repository, key, status string, log *slog.Logger) (Kind, string) {
	transitions, err := repo.GetTransitions(ctx, key)
	if err != nil {
		return KindConnectionError, fmt.Sprintf("failed to get transitions: %v", err)
	}

	t, err := workflow.Resolve(status, transitions)
	if err != nil {
		return KindTransitionNotFound, err.Error()
	}
	log.Debug("Resolved transition", "key", key, "status", status, "transition", t.Name, "id", t.ID)

	if err := repo.ExecuteTransition(ctx, key, t.ID); err != nil {
		return KindConnectionError, fmt.Sprintf("failed to execute transition %q: %v", t.Name, err)
	}
	return KindUpdated, fmt.Sprintf("moved to %q via %q", status, t.Name)
}
