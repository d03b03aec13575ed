package engine

// Kind classifies what happened to one issue during a run.
type Kind string

// Reset kinds.
const (
	KindUpdated            Kind = "updated"
	KindSkipped            Kind = "skipped"
	KindPatternMismatch    Kind = "pattern_mismatch"
	KindTransitionNotFound Kind = "transition_not_found"
	KindConnectionError    Kind = "connection_error"
)

// Assert kinds.
const (
	KindPassed       Kind = "passed"
	KindFailed       Kind = "failed"
	KindNotEvaluated Kind = "not_evaluated"
)

// IsFailure reports whether the kind makes a run unsuccessful.
func (k Kind) IsFailure() bool {
	switch k {
	case KindFailed, KindTransitionNotFound, KindConnectionError:
		return true
	}
	return false
}

// Reported reports whether outcomes of this kind are listed in Report.Details.
func (k Kind) Reported() bool {
	return k.IsFailure() || k == KindPatternMismatch
}

// Outcome is the result for a single issue.
type Outcome struct {
	Key       string `yaml:"key" json:"key"`
	Kind      Kind   `yaml:"kind" json:"kind"`
	Reason    string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Summary   string `yaml:"summary,omitempty" json:"summary,omitempty"`
	Context   string `yaml:"context,omitempty" json:"context,omitempty"`
	Start     string `yaml:"start,omitempty" json:"start,omitempty"`
	Expected  string `yaml:"expected,omitempty" json:"expected,omitempty"`
	Actual    string `yaml:"actual,omitempty" json:"actual,omitempty"`
	IssueType string `yaml:"issue_type,omitempty" json:"issue_type,omitempty"`
	Parent    string `yaml:"parent,omitempty" json:"parent,omitempty"`
}
