package workflow

import (
	"errors"
	"testing"

	"github.com/goblinsan/jira-util/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransitions() []types.Transition {
	return []types.Transition{
		{ID: "11", Name: `Jump to "IMPLEMENT"`},
		{ID: "21", Name: `Jump back to "CLOSED"`},
		{ID: "31", Name: `To "READY for SIT/LAB"`},
	}
}

func TestResolve_QuotedMatch(t *testing.T) {
	got, err := Resolve("CLOSED", sampleTransitions())
	require.NoError(t, err)
	assert.Equal(t, "21", got.ID)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	got, err := Resolve("ready for sit/lab", sampleTransitions())
	require.NoError(t, err)
	assert.Equal(t, "31", got.ID)

	got, err = Resolve("  Implement ", sampleTransitions())
	require.NoError(t, err)
	assert.Equal(t, "11", got.ID)
}

func TestResolve_NotFound(t *testing.T) {
	_, err := Resolve("DONE", sampleTransitions())
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "DONE", nf.Status)
	assert.Len(t, nf.Available, 3)
	assert.Contains(t, err.Error(), `"DONE"`)
}

func TestResolve_RequiresQuotes(t *testing.T) {
	// The bare status name inside the display name is not enough.
	_, err := Resolve("CLOSED", []types.Transition{{ID: "1", Name: "Jump back to CLOSED"}})
	assert.Error(t, err)
}

func TestResolve_RequiresWholeQuotedSegment(t *testing.T) {
	_, err := Resolve("CLOSE", []types.Transition{{ID: "1", Name: `Jump back to "CLOSED"`}})
	assert.Error(t, err)
}

func TestResolve_FirstMatchWins(t *testing.T) {
	ts := []types.Transition{
		{ID: "1", Name: `Reopen to "Open"`},
		{ID: "2", Name: `Jump to "OPEN"`},
	}
	got, err := Resolve("open", ts)
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
}

func TestResolve_EmptyTransitions(t *testing.T) {
	_, err := Resolve("Done", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transitions available")
}

func TestQuotedStatuses(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, QuotedStatuses(`From "A" to " B "`))
	assert.Equal(t, []string{"A"}, QuotedStatuses(`From "A" to "B`))
	assert.Nil(t, QuotedStatuses("plain"))
}
