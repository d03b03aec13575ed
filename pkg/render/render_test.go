package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/goblinsan/jira-util/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleAssertReport() *engine.Report {
	r := engine.Aggregate(engine.ModeAssert, "rule-testing", []engine.Outcome{
		{Key: "E-1", Kind: engine.KindPassed, IssueType: "Epic", Actual: "Done", Expected: "Done"},
		{Key: "S-1", Kind: engine.KindFailed, IssueType: "Story", Parent: "E-1", Actual: "To Do", Expected: "Done", Context: "Login"},
		{Key: "N-1", Kind: engine.KindNotEvaluated, Reason: "summary doesn't match expected pattern"},
	})
	r.RunID = "run-1"
	return r
}

func TestTerminal_AssertReport(t *testing.T) {
	out := NewTerminal(MonoTheme(), 80).Report(sampleAssertReport())

	if !strings.Contains(out, `Assert fixtures labelled "rule-testing"`) {
		t.Errorf("expected header in output:\n%s", out)
	}
	assert.Contains(t, out, "Failures")
	assert.Contains(t, out, `x S-1 [Story] expected "Done", got "To Do" (Login)`)
	assert.Contains(t, out, "o E-1 [Epic] parent of failing issues")
	assert.Contains(t, out, "Not evaluated: N-1")
	assert.Contains(t, out, "Summary: 3 processed, 1 passed, 1 failed, 1 not evaluated")

	// The failing child is indented under its context parent.
	lines := strings.Split(out, "\n")
	var parentIndent, childIndent int
	for _, l := range lines {
		trimmed := strings.TrimLeft(l, " ")
		switch {
		case strings.HasPrefix(trimmed, "o E-1"):
			parentIndent = len(l) - len(trimmed)
		case strings.HasPrefix(trimmed, "x S-1"):
			childIndent = len(l) - len(trimmed)
		}
	}
	assert.Greater(t, childIndent, parentIndent)
}

func TestTerminal_ResetReport(t *testing.T) {
	r := engine.Aggregate(engine.ModeReset, "rule-testing", []engine.Outcome{
		{Key: "T-1", Kind: engine.KindUpdated, Reason: `moved to "To Do" via "Jump to \"To Do\""`},
		{Key: "T-2", Kind: engine.KindSkipped, Reason: `already in target status "To Do"`},
		{Key: "T-3", Kind: engine.KindTransitionNotFound, Reason: "no transition"},
	})

	out := NewTerminal(MonoTheme(), 0).Report(r)
	assert.Contains(t, out, "Reset fixtures")
	assert.Contains(t, out, "+ T-1")
	assert.Contains(t, out, "- T-2 already in target status")
	assert.Contains(t, out, "x T-3 no transition")
}

func TestTerminal_EmptyReport(t *testing.T) {
	out := NewTerminal(MonoTheme(), 80).Report(engine.Aggregate(engine.ModeReset, "none", nil))
	assert.Contains(t, out, "no issues found")
}

func TestTerminal_Trigger(t *testing.T) {
	res := &engine.TriggerResult{
		Key:            "TAPS-212",
		Summary:        "Automation trigger",
		Plan:           engine.LabelPlan{Kind: engine.PlanToggle, Labels: []string{"go"}},
		PreviousLabels: nil,
		Labels:         []string{"go"},
	}
	out := NewTerminal(MonoTheme(), 80).Trigger(res)
	assert.Contains(t, out, "Trigger TAPS-212")
	assert.Contains(t, out, "before: (none)")
	assert.Contains(t, out, "after:  go")
	assert.Contains(t, out, `label "go" added`)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON).Report(sampleAssertReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "assert", decoded["mode"])
	assert.Equal(t, false, decoded["overall_success"])
	assert.Equal(t, "run-1", decoded["run_id"])
}

func TestPrinter_YAML(t *testing.T) {
	var buf bytes.Buffer
	res := &engine.TriggerResult{Key: "T-1", Plan: engine.LabelPlan{Kind: engine.PlanReplaceAll, Labels: []string{"a", "b"}}, Labels: []string{"a", "b"}, Mutations: 1}
	require.NoError(t, NewPrinter(&buf, FormatYAML).Trigger(res))

	var decoded struct {
		Key  string `yaml:"key"`
		Plan struct {
			Kind string `yaml:"kind"`
		} `yaml:"plan"`
		Mutations int `yaml:"mutations"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "T-1", decoded.Key)
	assert.Equal(t, "replace_all", decoded.Plan.Kind)
	assert.Equal(t, 1, decoded.Mutations)
}

func TestThemeFor_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "mono", ThemeFor(&buf).Name)
	assert.Equal(t, 80, WidthFor(&buf))
}

func TestTerminal_TitlesUsePrimaryStyle(t *testing.T) {
	theme := MonoTheme()
	theme.Primary = lipgloss.NewStyle().Transform(strings.ToUpper)
	term := NewTerminal(theme, 80)

	out := term.Report(engine.Aggregate(engine.ModeAssert, "smoke", nil))
	assert.Contains(t, out, `ASSERT FIXTURES LABELLED "SMOKE"`)

	out = term.Trigger(&engine.TriggerResult{
		Key:    "T-1",
		Plan:   engine.LabelPlan{Kind: engine.PlanToggle, Labels: []string{"go"}},
		Labels: []string{"go"},
	})
	assert.Contains(t, out, "TRIGGER T-1")
	assert.True(t, DefaultTheme().Primary.GetBold())
}
