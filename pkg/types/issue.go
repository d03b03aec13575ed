package types

import "errors"

// ErrIssueNotFound is returned by repositories when an issue key does not resolve.
var ErrIssueNotFound = errors.New("issue not found")

// Issue is the part of a tracker issue the fixture engine works with.
type Issue struct {
	Key     string   `yaml:"key" json:"key"`
	Summary string   `yaml:"summary" json:"summary"`
	Status  string   `yaml:"status" json:"status"`
	Labels  []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Type    string   `yaml:"type,omitempty" json:"type,omitempty"`
	Parent  string   `yaml:"parent,omitempty" json:"parent,omitempty"`
}

// HasLabel reports whether the issue carries label (exact match).
func (i Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Transition is a workflow action available on an issue.
type Transition struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	// To is the destination status when the backend reports it.
	To string `yaml:"to,omitempty" json:"to,omitempty"`
}
