package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goblinsan/jira-util/pkg/engine"
)

// Terminal renders reports as styled terminal output via lipgloss.
type Terminal struct {
	theme Theme
	width int
}

// NewTerminal creates a terminal renderer with the given theme.
func NewTerminal(theme Theme, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{theme: theme, width: width}
}

// Report formats a reset or assert report.
func (t *Terminal) Report(r *engine.Report) string {
	var sb strings.Builder

	title := "Reset"
	if r.Mode == engine.ModeAssert {
		title = "Assert"
	}
	sb.WriteString(t.theme.Primary.Render(fmt.Sprintf("%s fixtures labelled %q", title, r.Label)))
	if r.RunID != "" {
		sb.WriteString(t.theme.Muted.Render("  run " + r.RunID))
	}
	sb.WriteString("\n")

	if r.Processed == 0 {
		sb.WriteString(t.theme.Muted.Render("  no issues found"))
		sb.WriteString("\n")
	}

	if r.Mode == engine.ModeAssert {
		t.writeAssert(&sb, r)
	} else {
		for _, o := range r.Outcomes {
			t.writeOutcome(&sb, o, 1, false)
		}
	}

	sb.WriteString(t.rule())
	sb.WriteString("\n")
	style := t.theme.Success
	if !r.OverallSuccess {
		style = t.theme.Error
	}
	sb.WriteString(style.Render(r.String()))
	sb.WriteString("\n")
	return sb.String()
}

func (t *Terminal) writeAssert(sb *strings.Builder, r *engine.Report) {
	for _, o := range r.Outcomes {
		if o.Kind == engine.KindPassed {
			t.writeOutcome(sb, o, 1, false)
		}
	}

	if tree := r.FailureTree(); len(tree) > 0 {
		sb.WriteString(t.theme.Bold.Render("Failures"))
		sb.WriteString("\n")
		for _, e := range tree {
			t.writeOutcome(sb, e.Outcome, e.Depth+1, e.ContextOnly)
		}
	}

	if len(r.NotEvaluatedKeys) > 0 {
		sb.WriteString(t.theme.Warning.Render(fmt.Sprintf("%s Not evaluated: %s",
			t.theme.Icons.Warn, strings.Join(r.NotEvaluatedKeys, ", "))))
		sb.WriteString("\n")
	}
}

func (t *Terminal) writeOutcome(sb *strings.Builder, o engine.Outcome, depth int, contextOnly bool) {
	icon, style := t.iconStyle(o.Kind)
	if contextOnly {
		icon, style = t.theme.Icons.Context, t.theme.Muted
	}

	key := o.Key
	if o.IssueType != "" {
		key += " [" + o.IssueType + "]"
	}

	var detail string
	switch {
	case contextOnly:
		detail = "parent of failing issues"
	case o.Kind == engine.KindFailed:
		detail = fmt.Sprintf("expected %q, got %q", o.Expected, o.Actual)
	case o.Kind == engine.KindPassed:
		detail = o.Actual
	default:
		detail = o.Reason
	}

	line := strings.Repeat("  ", depth) + style.Render(icon+" "+key)
	if detail != "" {
		line += " " + t.theme.Muted.Render(detail)
	}
	if o.Context != "" && !contextOnly {
		line += t.theme.Muted.Render(" (" + o.Context + ")")
	}
	sb.WriteString(line)
	sb.WriteString("\n")
}

// Trigger formats a trigger result.
func (t *Terminal) Trigger(res *engine.TriggerResult) string {
	var sb strings.Builder
	sb.WriteString(t.theme.Primary.Render("Trigger " + res.Key))
	if res.Summary != "" {
		sb.WriteString(t.theme.Muted.Render("  " + res.Summary))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  before: %s\n", labelList(res.PreviousLabels)))
	sb.WriteString(fmt.Sprintf("  after:  %s\n", labelList(res.Labels)))
	sb.WriteString(t.theme.Success.Render(t.theme.Icons.Pass + " " + res.String()))
	sb.WriteString("\n")
	return sb.String()
}

func (t *Terminal) iconStyle(k engine.Kind) (string, lipgloss.Style) {
	switch k {
	case engine.KindUpdated, engine.KindPassed:
		return t.theme.Icons.Pass, t.theme.Success
	case engine.KindSkipped:
		return t.theme.Icons.Skip, t.theme.Muted
	case engine.KindPatternMismatch, engine.KindNotEvaluated:
		return t.theme.Icons.Warn, t.theme.Warning
	default:
		return t.theme.Icons.Fail, t.theme.Error
	}
}

func (t *Terminal) rule() string {
	n := t.width
	if n > 60 {
		n = 60
	}
	return t.theme.Muted.Render(strings.Repeat("─", n))
}

func labelList(labels []string) string {
	if len(labels) == 0 {
		return "(none)"
	}
	return strings.Join(labels, ", ")
}
