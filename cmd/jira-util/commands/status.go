package commands

import (
	"fmt"
	"io"

	"github.com/goblinsan/jira-util/pkg/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st", "list"},
	Short:   "Show the resolved configuration without contacting the tracker",
	Long: `Show the version, backend, config file and fixture defaults, and check the
configuration for problems. Secrets are never printed; only where they were
found. Exits non-zero when the configuration is incomplete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, source, err := loadConfig(false)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		writeStatus(out, cfg, source)

		problems := cfg.Validate()
		if len(problems) > 0 {
			fmt.Fprintf(out, "\nConfiguration has %d problem(s):\n", len(problems))
			for i, p := range problems {
				fmt.Fprintf(out, "  %d. %s\n", i+1, p)
			}
			return fmt.Errorf("configuration is incomplete")
		}

		fmt.Fprintln(out, "\nConfiguration is valid.")
		return nil
	},
}

func writeStatus(w io.Writer, cfg *config.Config, source credentialSource) {
	configFile := cfg.Source
	if configFile == "" {
		configFile = "(none, using flags and environment)"
	}

	fmt.Fprintf(w, "jira-util %s\n", Version)
	fmt.Fprintf(w, "  config:       %s\n", configFile)
	fmt.Fprintf(w, "  backend:      %s\n", cfg.Backend)
	switch cfg.Backend {
	case config.BackendGitHub:
		fmt.Fprintf(w, "  repository:   %s\n", valueOrUnset(cfg.GitHubRepository))
		fmt.Fprintf(w, "  project:      %s\n", valueOrUnset(cfg.GitHubProject))
		fmt.Fprintf(w, "  status field: %s\n", cfg.GitHubStatusField)
	default:
		fmt.Fprintf(w, "  url:          %s\n", valueOrUnset(cfg.JiraURL))
		fmt.Fprintf(w, "  username:     %s\n", valueOrUnset(cfg.JiraUsername))
	}
	fmt.Fprintf(w, "  credential:   %s\n", source)
	fmt.Fprintf(w, "  test set:     %s\n", cfg.DefaultLabel)
	fmt.Fprintf(w, "  trigger key:  %s\n", cfg.TriggerIssueKey)
	fmt.Fprintf(w, "  toggle delay: %s\n", cfg.ToggleDelay)
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
