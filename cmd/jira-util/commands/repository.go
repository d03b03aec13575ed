package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goblinsan/jira-util/pkg/config"
	"github.com/goblinsan/jira-util/pkg/credential"
	"github.com/goblinsan/jira-util/pkg/engine"
	ghclient "github.com/goblinsan/jira-util/pkg/github"
	"github.com/goblinsan/jira-util/pkg/jira"
	"github.com/spf13/viper"
)

// newRepository builds the backend selected by cfg. Tests replace it.
var newRepository = func(cfg *config.Config) (engine.Repository, error) {
	switch cfg.Backend {
	case config.BackendJira:
		return jiraClient(cfg), nil
	case config.BackendGitHub:
		return githubRepository(cfg)
	default:
		return nil, fmt.Errorf("backend %q is not supported", cfg.Backend)
	}
}

func jiraClient(cfg *config.Config) *jira.Client {
	return jira.NewClient(jira.Options{
		BaseURL:  cfg.JiraURL,
		Username: cfg.JiraUsername,
		Token:    cfg.JiraPassword,
		Logger:   slog.Default(),
	})
}

func githubRepository(cfg *config.Config) (*ghclient.Repository, error) {
	return ghclient.NewRepository(ghclient.Options{
		Token:       cfg.GitHubToken,
		Repository:  cfg.GitHubRepository,
		Project:     cfg.GitHubProject,
		StatusField: cfg.GitHubStatusField,
		Logger:      slog.Default(),
	})
}

// credentialSource describes where the backend secret came from.
type credentialSource string

const (
	sourceConfig  credentialSource = "config"
	sourceKeyring credentialSource = "keyring"
	sourcePrompt  credentialSource = "prompt"
	sourceNone    credentialSource = "none"
)

// loadConfig resolves configuration from flags, files and environment, then
// falls back to the keyring for a missing secret. With interactive set and a
// terminal on stdin, anything still missing is prompted for.
func loadConfig(interactive bool) (*config.Config, credentialSource, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, sourceNone, err
	}

	source := sourceConfig
	if cfg.Secret() == "" {
		source = sourceNone
		secret, err := credential.Get(cfg.SecretKey())
		switch {
		case err == nil && secret != "":
			cfg.SetSecret(secret)
			source = sourceKeyring
		case err != nil && !errors.Is(err, credential.ErrNotFound):
			slog.Debug("Keyring unavailable", "error", err)
		}
	}

	if interactive && len(cfg.Validate()) > 0 && stdinIsTerminal() {
		prompted, err := promptMissing(cfg)
		if err != nil {
			return nil, sourceNone, err
		}
		if prompted {
			source = sourcePrompt
		}
	}
	return cfg, source, nil
}

// requireConfig is loadConfig plus validation.
func requireConfig(interactive bool) (*config.Config, error) {
	cfg, _, err := loadConfig(interactive)
	if err != nil {
		return nil, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return cfg, nil
}
