// Package config builds the runtime configuration from flags, config files,
// environment variables and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendJira   = "jira"
	BackendGitHub = "github"

	DefaultLabel       = "rule-testing"
	DefaultTriggerKey  = "TAPS-212"
	DefaultToggleDelay = 5 * time.Second
)

// Config holds everything needed to build a repository and run fixtures.
type Config struct {
	Backend string `mapstructure:"backend" yaml:"backend"`

	JiraURL      string `mapstructure:"jira_url" yaml:"jira_url"`
	JiraUsername string `mapstructure:"jira_username" yaml:"jira_username"`
	JiraPassword string `mapstructure:"jira_password" yaml:"-"`

	GitHubToken       string `mapstructure:"github_token" yaml:"-"`
	GitHubRepository  string `mapstructure:"github_repository" yaml:"github_repository"`
	GitHubProject     string `mapstructure:"github_project" yaml:"github_project"`
	GitHubStatusField string `mapstructure:"github_status_field" yaml:"github_status_field"`

	DefaultLabel    string        `mapstructure:"default_label" yaml:"default_label"`
	TriggerIssueKey string        `mapstructure:"trigger_issue_key" yaml:"trigger_issue_key"`
	ToggleDelay     time.Duration `mapstructure:"toggle_delay" yaml:"toggle_delay"`

	// Source is the config file that was read, if any.
	Source string `mapstructure:"-" yaml:"source,omitempty"`
}

// SetDefaults registers every key so that AutomaticEnv values are visible
// to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendJira)
	v.SetDefault("jira_url", "")
	v.SetDefault("jira_username", "")
	v.SetDefault("jira_password", "")
	v.SetDefault("github_token", "")
	v.SetDefault("github_repository", "")
	v.SetDefault("github_project", "")
	v.SetDefault("github_status_field", "Status")
	v.SetDefault("default_label", DefaultLabel)
	v.SetDefault("trigger_issue_key", DefaultTriggerKey)
	v.SetDefault("toggle_delay", DefaultToggleDelay)
}

// Candidates lists the config files searched when --config is not given,
// in priority order.
func Candidates(home string) []string {
	paths := []string{
		filepath.Join(".venv", "jira_config.env"),
		"jira_config.env",
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".jira-util.yaml"))
	}
	return paths
}

// Load reads the explicit file, or the first existing candidate, into v.
// It returns the file used, or "" when none was found.
func Load(v *viper.Viper, explicit string, candidates []string) (string, error) {
	path := explicit
	if path == "" {
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}
	if path == "" {
		return "", nil
	}

	v.SetConfigFile(path)
	if strings.HasSuffix(path, ".env") {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config %s: %w", path, err)
	}
	return path, nil
}

// FromViper decodes v into a Config. Template placeholder values left over
// from the sample config are treated as unset.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.JiraURL = strings.TrimRight(strings.TrimSpace(cfg.JiraURL), "/")

	checks := []struct {
		field Field
		value *string
	}{
		{FieldURL, &cfg.JiraURL},
		{FieldUsername, &cfg.JiraUsername},
		{FieldPassword, &cfg.JiraPassword},
		{FieldPassword, &cfg.GitHubToken},
	}
	for _, c := range checks {
		*c.value = strings.TrimSpace(*c.value)
		if IsTemplateValue(c.field, *c.value) {
			*c.value = ""
		}
	}
	return &cfg, nil
}

// Field names a configuration value checked for template placeholders.
type Field string

const (
	FieldURL      Field = "url"
	FieldUsername Field = "username"
	FieldPassword Field = "password"
)

var templateMarkers = map[Field][]string{
	FieldURL:      {"yourcompany", "example", "placeholder"},
	FieldUsername: {"your.email", "example", "placeholder", "user@"},
	FieldPassword: {"your_api", "example", "placeholder", "token_here"},
}

// IsTemplateValue reports whether s, the value of field, looks like it was
// copied unchanged from the sample configuration.
func IsTemplateValue(field Field, s string) bool {
	lower := strings.ToLower(s)
	for _, m := range templateMarkers[field] {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Secret returns the credential used by the selected backend.
func (c *Config) Secret() string {
	if c.Backend == BackendGitHub {
		return c.GitHubToken
	}
	return c.JiraPassword
}

// SetSecret stores the credential for the selected backend.
func (c *Config) SetSecret(s string) {
	if c.Backend == BackendGitHub {
		c.GitHubToken = s
		return
	}
	c.JiraPassword = s
}

// SecretKey names the keyring entry holding the backend credential.
func (c *Config) SecretKey() string {
	if c.Backend == BackendGitHub {
		return "github:" + c.GitHubRepository
	}
	return "jira:" + c.JiraURL + ":" + c.JiraUsername
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() []string {
	var errs []string

	switch c.Backend {
	case BackendJira:
		if c.JiraURL == "" {
			errs = append(errs, "jira_url is required (set JIRA_URL)")
		} else if u, err := url.Parse(c.JiraURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("jira_url %q must be an http(s) URL", c.JiraURL))
		}
		if c.JiraPassword == "" {
			errs = append(errs, "jira_password is required (set JIRA_PASSWORD or run login)")
		}
	case BackendGitHub:
		if c.GitHubToken == "" {
			errs = append(errs, "github_token is required (set GITHUB_TOKEN or run login)")
		}
		owner, name, ok := strings.Cut(c.GitHubRepository, "/")
		if !ok || owner == "" || name == "" {
			errs = append(errs, fmt.Sprintf("github_repository %q must be in owner/repo format", c.GitHubRepository))
		}
		if c.GitHubProject == "" {
			errs = append(errs, "github_project is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("backend %q is not supported (want jira or github)", c.Backend))
	}

	if c.ToggleDelay < 0 {
		errs = append(errs, "toggle_delay must not be negative")
	}
	return errs
}
