package engine

import (
	"context"
	"fmt"

	"github.com/goblinsan/jira-util/pkg/summary"
	"github.com/goblinsan/jira-util/pkg/types"
	"github.com/google/uuid"
)

// RunAssert checks that every issue carrying label is in the expected
// status encoded in its summary. It never mutates issues.
func RunAssert(ctx context.Context, repo Repository, label string, opts AssertOptions) (*Report, error) {
	label, err := validateLabel(label)
	if err != nil {
		return nil, err
	}
	log := loggerOrDefault(opts.Logger).With("mode", ModeAssert, "label", label)

	issues, err := fetchFixtures(ctx, repo, label)
	if err != nil {
		return nil, err
	}
	log.Info("Starting assertion", "issues", len(issues))

	outcomes := make([]Outcome, 0, len(issues))
	for _, issue := range issues {
		o := assertIssue(issue)
		log.Info("Asserted issue", "key", o.Key, "status", o.Actual, "expected", o.Expected, "outcome", o.Kind)
		outcomes = append(outcomes, o)
	}

	report := Aggregate(ModeAssert, label, outcomes)
	report.RunID = uuid.NewString()
	return report, nil
}

func assertIssue(issue types.Issue) Outcome {
	o := newOutcome(issue)

	p, ok := summary.Parse(issue.Summary)
	if !ok {
		o.Kind = KindNotEvaluated
		o.Reason = summary.MismatchReason
		return o
	}
	o.Context, o.Start, o.Expected = p.Context, p.Start, p.Expected

	if o.Actual == p.Expected {
		o.Kind = KindPassed
		o.Reason = "current status matches expected status"
		return o
	}
	o.Kind = KindFailed
	o.Reason = fmt.Sprintf("current status %q does not match expected status %q", o.Actual, p.Expected)
	return o
}
