package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Mode names the kind of run that produced a report.
type Mode string

const (
	ModeReset  Mode = "reset"
	ModeAssert Mode = "assert"
)

// Counts tallies outcomes by kind.
type Counts struct {
	Updated            int `yaml:"updated,omitempty" json:"updated,omitempty"`
	Skipped            int `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	PatternMismatch    int `yaml:"pattern_mismatch,omitempty" json:"pattern_mismatch,omitempty"`
	TransitionNotFound int `yaml:"transition_not_found,omitempty" json:"transition_not_found,omitempty"`
	ConnectionError    int `yaml:"connection_error,omitempty" json:"connection_error,omitempty"`
	Passed             int `yaml:"passed,omitempty" json:"passed,omitempty"`
	Failed             int `yaml:"failed,omitempty" json:"failed,omitempty"`
	NotEvaluated       int `yaml:"not_evaluated,omitempty" json:"not_evaluated,omitempty"`
}

func (c *Counts) add(k Kind) {
	switch k {
	case KindUpdated:
		c.Updated++
	case KindSkipped:
		c.Skipped++
	case KindPatternMismatch:
		c.PatternMismatch++
	case KindTransitionNotFound:
		c.TransitionNotFound++
	case KindConnectionError:
		c.ConnectionError++
	case KindPassed:
		c.Passed++
	case KindFailed:
		c.Failed++
	case KindNotEvaluated:
		c.NotEvaluated++
	}
}

// Of returns the count for a single kind.
func (c Counts) Of(k Kind) int {
	switch k {
	case KindUpdated:
		return c.Updated
	case KindSkipped:
		return c.Skipped
	case KindPatternMismatch:
		return c.PatternMismatch
	case KindTransitionNotFound:
		return c.TransitionNotFound
	case KindConnectionError:
		return c.ConnectionError
	case KindPassed:
		return c.Passed
	case KindFailed:
		return c.Failed
	case KindNotEvaluated:
		return c.NotEvaluated
	}
	return 0
}

// Detail is a reported outcome: a failure or a pattern mismatch.
type Detail struct {
	Key    string `yaml:"key" json:"key"`
	Kind   Kind   `yaml:"kind" json:"kind"`
	Reason string `yaml:"reason" json:"reason"`
}

// Report summarizes a reset or assert run.
type Report struct {
	RunID            string    `yaml:"run_id" json:"run_id"`
	Mode             Mode      `yaml:"mode" json:"mode"`
	Label            string    `yaml:"label" json:"label"`
	Processed        int       `yaml:"processed" json:"processed"`
	Counts           Counts    `yaml:"counts" json:"counts"`
	Details          []Detail  `yaml:"details,omitempty" json:"details,omitempty"`
	NotEvaluatedKeys []string  `yaml:"not_evaluated_keys,omitempty" json:"not_evaluated_keys,omitempty"`
	Outcomes         []Outcome `yaml:"outcomes" json:"outcomes"`
	OverallSuccess   bool      `yaml:"overall_success" json:"overall_success"`
}

// Aggregate builds a report from per-issue outcomes in processing order.
func Aggregate(mode Mode, label string, outcomes []Outcome) *Report {
	r := &Report{
		Mode:           mode,
		Label:          label,
		Processed:      len(outcomes),
		Outcomes:       outcomes,
		OverallSuccess: true,
	}
	for _, o := range outcomes {
		r.Counts.add(o.Kind)
		if o.Kind.Reported() {
			r.Details = append(r.Details, Detail{Key: o.Key, Kind: o.Kind, Reason: o.Reason})
		}
		if o.Kind == KindNotEvaluated {
			r.NotEvaluatedKeys = append(r.NotEvaluatedKeys, o.Key)
		}
		if o.Kind.IsFailure() {
			r.OverallSuccess = false
		}
	}
	return r
}

// String returns a one-line summary of the report.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %d processed", r.Processed)
	switch r.Mode {
	case ModeAssert:
		fmt.Fprintf(&b, ", %d passed, %d failed, %d not evaluated",
			r.Counts.Passed, r.Counts.Failed, r.Counts.NotEvaluated)
	default:
		fmt.Fprintf(&b, ", %d updated, %d skipped, %d pattern mismatches, %d transitions not found, %d connection errors",
			r.Counts.Updated, r.Counts.Skipped, r.Counts.PatternMismatch,
			r.Counts.TransitionNotFound, r.Counts.ConnectionError)
	}
	return b.String()
}

// TreeEntry is one line of the failure hierarchy.
type TreeEntry struct {
	Outcome Outcome
	Depth   int
	// ContextOnly marks a passing ancestor shown to place its failing children.
	ContextOnly bool
}

// FailureTree arranges failed assertions under their parents. Passing
// ancestors that are part of the run are pulled in as context. Roots are
// ordered epics first, then sub-tasks, then everything else, keeping
// processing order within each group.
func (r *Report) FailureTree() []TreeEntry {
	index := make(map[string]int, len(r.Outcomes))
	for i, o := range r.Outcomes {
		index[o.Key] = i
	}

	include := make(map[string]bool)
	contextOnly := make(map[string]bool)
	for _, o := range r.Outcomes {
		if o.Kind == KindFailed {
			include[o.Key] = true
		}
	}
	if len(include) == 0 {
		return nil
	}
	for _, o := range r.Outcomes {
		if o.Kind != KindFailed {
			continue
		}
		for p := o.Parent; p != ""; {
			i, ok := index[p]
			if !ok || include[p] {
				break
			}
			include[p] = true
			contextOnly[p] = true
			p = r.Outcomes[i].Parent
		}
	}

	children := make(map[string][]Outcome)
	var roots []Outcome
	for _, o := range r.Outcomes {
		if !include[o.Key] {
			continue
		}
		if o.Parent != "" && o.Parent != o.Key && include[o.Parent] {
			children[o.Parent] = append(children[o.Parent], o)
			continue
		}
		roots = append(roots, o)
	}
	sort.SliceStable(roots, func(i, j int) bool {
		return typeRank(roots[i].IssueType) < typeRank(roots[j].IssueType)
	})

	var out []TreeEntry
	visited := make(map[string]bool)
	var walk func(o Outcome, depth int)
	walk = func(o Outcome, depth int) {
		if visited[o.Key] {
			return
		}
		visited[o.Key] = true
		out = append(out, TreeEntry{Outcome: o, Depth: depth, ContextOnly: contextOnly[o.Key]})
		for _, c := range children[o.Key] {
			walk(c, depth+1)
		}
	}
	for _, o := range roots {
		walk(o, 0)
	}
	// Parent cycles leave nodes without a root.
	for _, o := range r.Outcomes {
		if include[o.Key] && !visited[o.Key] {
			walk(o, 0)
		}
	}
	return out
}

func typeRank(issueType string) int {
	t := strings.ToLower(strings.ReplaceAll(issueType, "-", ""))
	switch t {
	case "epic":
		return 0
	case "subtask":
		return 1
	}
	return 2
}
