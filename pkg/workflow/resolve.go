// Package workflow maps a target status name onto one of the workflow
// transitions available on an issue.
package workflow

import (
	"fmt"
	"strings"

	"github.com/goblinsan/jira-util/pkg/types"
)

// NotFoundError reports that no transition leads to the requested status.
type NotFoundError struct {
	Status    string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no transition found for status %q (no transitions available)", e.Status)
	}
	return fmt.Sprintf("no transition found for status %q (available: %s)", e.Status, strings.Join(e.Available, ", "))
}

// Resolve returns the first transition whose display name contains the
// target status enclosed in double quotes, compared case-insensitively,
// e.g. target CLOSED matches `Jump back to "CLOSED"`. Transitions are
// checked in the order given; when several match the first one wins.
func Resolve(target string, transitions []types.Transition) (types.Transition, error) {
	want := strings.TrimSpace(target)
	for _, t := range transitions {
		for _, quoted := range QuotedStatuses(t.Name) {
			if strings.EqualFold(quoted, want) {
				return t, nil
			}
		}
	}

	available := make([]string, 0, len(transitions))
	for _, t := range transitions {
		available = append(available, t.Name)
	}
	return types.Transition{}, &NotFoundError{Status: want, Available: available}
}

// QuotedStatuses returns the trimmed text of every double-quoted segment in
// a transition name. An unterminated trailing quote is ignored.
func QuotedStatuses(name string) []string {
	var out []string
	rest := name
	for {
		open := strings.IndexByte(rest, '"')
		if open < 0 {
			return out
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return out
		}
		out = append(out, strings.TrimSpace(rest[:end]))
		rest = rest[end+1:]
	}
}
