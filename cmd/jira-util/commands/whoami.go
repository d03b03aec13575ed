package commands

import (
	"fmt"

	"github.com/goblinsan/jira-util/pkg/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Display the account behind the configured credentials",
	Long:  `Verify the configured credentials by asking the tracker who they belong to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig(true)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		switch cfg.Backend {
		case config.BackendGitHub:
			repo, err := githubRepository(cfg)
			if err != nil {
				return err
			}
			user, err := repo.GetAuthenticatedUser(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get authenticated user: %w", err)
			}
			fmt.Fprintf(out, "Logged in to GitHub as: %s\n", user.GetLogin())
			if user.GetName() != "" {
				fmt.Fprintf(out, "Name: %s\n", user.GetName())
			}
			if user.GetEmail() != "" {
				fmt.Fprintf(out, "Email: %s\n", user.GetEmail())
			}
			fmt.Fprintf(out, "Repository: %s\n", repo.FullName())

		default:
			client := jiraClient(cfg)
			user, err := client.Myself(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get authenticated user: %w", err)
			}
			login := user.Name
			if login == "" {
				login = user.AccountID
			}
			fmt.Fprintf(out, "Logged in to %s as: %s\n", client.BaseURL(), user.DisplayName)
			if login != "" {
				fmt.Fprintf(out, "Account: %s\n", login)
			}
			if user.EmailAddress != "" {
				fmt.Fprintf(out, "Email: %s\n", user.EmailAddress)
			}
		}
		return nil
	},
}
