// Package summary parses the fixture convention embedded in issue summaries:
//
//	[<context> - ]I was in <start> - expected to be in <expected>
//	[<context> - ]starting in <start> - expected to be in <expected>
package summary

import (
	"regexp"
	"strings"
)

// MismatchReason is the skip reason reported for summaries that do not follow the convention.
const MismatchReason = "summary doesn't match expected pattern"

// Keywords are matched case-insensitively. The context and start captures are
// lazy so the first " - <keyword> " and the first " - expected to be in " win.
var fixturePattern = regexp.MustCompile(`(?i)^(?:(.*?) - )?(?:I was in|starting in) (.+?) - expected to be in (.+)$`)

// Pattern is the parsed form of a fixture summary.
type Pattern struct {
	Context  string `yaml:"context,omitempty" json:"context,omitempty"`
	Start    string `yaml:"start" json:"start"`
	Expected string `yaml:"expected" json:"expected"`
}

// Parse extracts the start and expected statuses from an issue summary.
// Status names are returned trimmed but otherwise verbatim. The second
// return value is false when the summary does not match either grammar or
// when either status is empty.
func Parse(s string) (Pattern, bool) {
	m := fixturePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Pattern{}, false
	}
	p := Pattern{
		Context:  strings.TrimSpace(m[1]),
		Start:    strings.TrimSpace(m[2]),
		Expected: strings.TrimSpace(m[3]),
	}
	if p.Start == "" || p.Expected == "" {
		return Pattern{}, false
	}
	return p, true
}
