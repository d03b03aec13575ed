package commands

import (
	"errors"
	"fmt"

	"github.com/goblinsan/jira-util/pkg/credential"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().Bool("delete", false, "remove the stored credential instead")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the tracker credential in the OS keyring",
	Long: `Prompt for the Jira API token (or GitHub token with --backend github) and
store it in the OS keyring, keyed by instance URL and username. Later runs
use it whenever no password is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(false)
		if err != nil {
			return err
		}
		key := cfg.SecretKey()

		if del, _ := cmd.Flags().GetBool("delete"); del {
			if err := credential.Delete(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed credential %s\n", key)
			return nil
		}

		if !stdinIsTerminal() {
			return errors.New("login needs an interactive terminal")
		}
		secret, err := promptSecret(cfg)
		if err != nil {
			return err
		}
		if err := credential.Set(key, secret); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored credential %s\n", key)
		return nil
	},
}
