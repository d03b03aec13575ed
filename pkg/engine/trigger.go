package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultToggleDelay is the pause between removing and re-adding a label so
// that label-added automation rules see a fresh event.
const DefaultToggleDelay = 5 * time.Second

// PlanKind selects how trigger labels are applied.
type PlanKind string

const (
	// PlanToggle removes the single label (if present) and adds it back.
	PlanToggle PlanKind = "toggle"
	// PlanReplaceAll replaces the issue's labels with the given set.
	PlanReplaceAll PlanKind = "replace_all"
)

// LabelPlan is the normalized label mutation for a trigger.
type LabelPlan struct {
	Kind   PlanKind `yaml:"kind" json:"kind"`
	Labels []string `yaml:"labels" json:"labels"`
}

// ParseLabels splits each input on commas, trims whitespace and drops
// empty and duplicate entries. Order of first appearance is kept.
func ParseLabels(inputs ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, in := range inputs {
		for _, part := range strings.Split(in, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// PlanLabels normalizes inputs and picks the plan kind.
func PlanLabels(inputs ...string) (LabelPlan, error) {
	labels := ParseLabels(inputs...)
	switch len(labels) {
	case 0:
		return LabelPlan{}, ErrNoLabels
	case 1:
		return LabelPlan{Kind: PlanToggle, Labels: labels}, nil
	default:
		return LabelPlan{Kind: PlanReplaceAll, Labels: labels}, nil
	}
}

// TriggerOptions configures Trigger.
type TriggerOptions struct {
	// ToggleDelay is waited after a label was actually removed. Zero disables it.
	ToggleDelay time.Duration
	Logger      *slog.Logger
}

// TriggerResult describes a completed trigger.
type TriggerResult struct {
	Key            string    `yaml:"key" json:"key"`
	Summary        string    `yaml:"summary" json:"summary"`
	Plan           LabelPlan `yaml:"plan" json:"plan"`
	PreviousLabels []string  `yaml:"previous_labels" json:"previous_labels"`
	Labels         []string  `yaml:"labels" json:"labels"`
	WasRemoved     bool      `yaml:"was_removed" json:"was_removed"`
	Mutations      int       `yaml:"mutations" json:"mutations"`
}

func (r *TriggerResult) String() string {
	switch r.Plan.Kind {
	case PlanToggle:
		action := "added"
		if r.WasRemoved {
			action = "removed and re-added"
		}
		return fmt.Sprintf("%s: label %q %s", r.Key, r.Plan.Labels[0], action)
	default:
		return fmt.Sprintf("%s: labels replaced with [%s]", r.Key, strings.Join(r.Labels, ", "))
	}
}

// Trigger fires label-based automation on a single issue. With one label it
// persists the labels without it and then with it appended, so the label is
// always freshly added. With several labels it replaces the label set in a
// single update. Input is validated before any repository call.
func Trigger(ctx context.Context, repo Repository, issueKey string, labels []string, opts TriggerOptions) (*TriggerResult, error) {
	key := strings.TrimSpace(issueKey)
	if key == "" {
		return nil, &ValidationError{Field: "issue key", Reason: "issue key must not be empty"}
	}
	plan, err := PlanLabels(labels...)
	if err != nil {
		return nil, err
	}
	log := loggerOrDefault(opts.Logger).With("key", key, "plan", plan.Kind)

	issue, err := repo.GetIssue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load issue %s: %w", key, err)
	}

	res := &TriggerResult{
		Key:            key,
		Summary:        issue.Summary,
		Plan:           plan,
		PreviousLabels: append([]string(nil), issue.Labels...),
	}

	if plan.Kind == PlanReplaceAll {
		if err := repo.SetLabels(ctx, key, plan.Labels); err != nil {
			return nil, fmt.Errorf("failed to replace labels on %s: %w", key, err)
		}
		res.Mutations++
		res.Labels = plan.Labels
		log.Info("Replaced labels", "labels", plan.Labels)
		return res, nil
	}

	label := plan.Labels[0]
	without := withoutLabel(issue.Labels, label)
	res.WasRemoved = len(without) != len(issue.Labels)

	if err := repo.SetLabels(ctx, key, without); err != nil {
		return nil, fmt.Errorf("failed to remove label %q from %s: %w", label, key, err)
	}
	res.Mutations++
	log.Debug("Removed label", "label", label, "was_present", res.WasRemoved)

	if res.WasRemoved && opts.ToggleDelay > 0 {
		log.Debug("Waiting before re-adding label", "delay", opts.ToggleDelay)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("interrupted before re-adding label %q to %s: %w", label, key, ctx.Err())
		case <-time.After(opts.ToggleDelay):
		}
	}

	final := append(append([]string(nil), without...), label)
	if err := repo.SetLabels(ctx, key, final); err != nil {
		return nil, fmt.Errorf("failed to add label %q to %s: %w", label, key, err)
	}
	res.Mutations++
	res.Labels = final
	log.Info("Toggled label", "label", label, "was_removed", res.WasRemoved)
	return res, nil
}

func withoutLabel(labels []string, label string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}
