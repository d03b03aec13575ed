package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ghclient "github.com/goblinsan/jira-util/pkg/github"
	"github.com/goblinsan/jira-util/pkg/jira"
	"github.com/goblinsan/jira-util/pkg/types"
)

// Repository defines the issue tracker operations needed by the engine.
type Repository interface {
	SearchByLabel(ctx context.Context, label string) ([]types.Issue, error)
	GetIssue(ctx context.Context, key string) (*types.Issue, error)
	GetTransitions(ctx context.Context, key string) ([]types.Transition, error)
	ExecuteTransition(ctx context.Context, key, transitionID string) error
	SetLabels(ctx context.Context, key string, labels []string) error
}

// Ensure both backends satisfy the interface at compile time.
var (
	_ Repository = (*jira.Client)(nil)
	_ Repository = (*ghclient.Repository)(nil)
)

// ValidationError reports bad input detected before any repository call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrNoLabels is returned when a trigger label list is empty after normalization.
var ErrNoLabels = &ValidationError{Field: "labels", Reason: "no valid labels provided"}

// ResetOptions configures RunReset.
type ResetOptions struct {
	// ForceVia names an intermediate status. Issues already in their start
	// status are moved there and back instead of being skipped.
	ForceVia string
	Logger   *slog.Logger
}

// AssertOptions configures RunAssert.
type AssertOptions struct {
	Logger *slog.Logger
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func validateLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", &ValidationError{Field: "label", Reason: "label must not be empty"}
	}
	return label, nil
}

// fetchFixtures runs the label search shared by reset and assert.
func fetchFixtures(ctx context.Context, repo Repository, label string) ([]types.Issue, error) {
	issues, err := repo.SearchByLabel(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues with label %q: %w", label, err)
	}
	return issues, nil
}
