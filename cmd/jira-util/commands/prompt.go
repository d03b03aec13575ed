package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/goblinsan/jira-util/pkg/config"
	"golang.org/x/term"
)

var errPromptAborted = errors.New("prompt cancelled")

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func required(name string, field config.Field) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		if config.IsTemplateValue(field, s) {
			return fmt.Errorf("%s still looks like a template value", name)
		}
		return nil
	}
}

// promptMissing asks for the connection settings that are still empty.
// It reports whether anything was asked.
func promptMissing(cfg *config.Config) (bool, error) {
	var fields []huh.Field

	switch cfg.Backend {
	case config.BackendJira:
		if cfg.JiraURL == "" {
			fields = append(fields, huh.NewInput().
				Title("Jira URL").
				Placeholder("https://acme.atlassian.net").
				Value(&cfg.JiraURL).
				Validate(required("Jira URL", config.FieldURL)))
		}
		if cfg.JiraUsername == "" {
			fields = append(fields, huh.NewInput().
				Title("Username").
				Description("Email for Jira Cloud; leave empty to use a personal access token").
				Value(&cfg.JiraUsername))
		}
		if cfg.JiraPassword == "" {
			fields = append(fields, huh.NewInput().
				Title("API token or password").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.JiraPassword).
				Validate(required("API token", config.FieldPassword)))
		}
	case config.BackendGitHub:
		if cfg.GitHubToken == "" {
			fields = append(fields, huh.NewInput().
				Title("GitHub token").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.GitHubToken).
				Validate(required("GitHub token", config.FieldPassword)))
		}
	}
	if len(fields) == 0 {
		return false, nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, errPromptAborted
		}
		return false, fmt.Errorf("form error: %w", err)
	}
	cfg.JiraURL = strings.TrimRight(strings.TrimSpace(cfg.JiraURL), "/")
	cfg.JiraUsername = strings.TrimSpace(cfg.JiraUsername)
	return true, nil
}

// promptSecret asks for the backend credential only.
func promptSecret(cfg *config.Config) (string, error) {
	var secret string
	title := "Jira API token or password"
	if cfg.Backend == config.BackendGitHub {
		title = "GitHub token"
	}
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			Description("Stored in the OS keyring under " + cfg.SecretKey()).
			EchoMode(huh.EchoModePassword).
			Value(&secret).
			Validate(required("token", config.FieldPassword)),
	)).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", errPromptAborted
		}
		return "", fmt.Errorf("form error: %w", err)
	}
	return strings.TrimSpace(secret), nil
}
