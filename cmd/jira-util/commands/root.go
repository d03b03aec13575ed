package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/goblinsan/jira-util/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "jira-util",
		Short: "Reset, assert and trigger Jira workflow test fixtures",
		Long: `jira-util keeps Jira workflow test fixtures in sync. Fixture issues carry
a label and a summary such as "I was in OPEN - expected to be in DONE".
reset moves every fixture to its starting status, trigger fires
label-based automation, and assert checks that each fixture ended up in
its expected status. It can also run as an MCP server over stdio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// Default action when no subcommand is specified
			cmd.Help()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .venv/jira_config.env, ./jira_config.env or $HOME/.jira-util.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.String("backend", "", "issue tracker backend: jira or github")
	flags.String("jira-url", "", "Jira base URL")
	flags.String("username", "", "Jira username or email")
	flags.String("password", "", "Jira password or API token")
	flags.String("github-token", "", "GitHub personal access token")
	flags.String("repository", "", "GitHub repository (owner/repo)")
	flags.String("project", "", "GitHub Projects V2 board title")

	// Bind flags to viper
	viper.BindPFlag("backend", flags.Lookup("backend"))
	viper.BindPFlag("jira_url", flags.Lookup("jira-url"))
	viper.BindPFlag("jira_username", flags.Lookup("username"))
	viper.BindPFlag("jira_password", flags.Lookup("password"))
	viper.BindPFlag("github_token", flags.Lookup("github-token"))
	viper.BindPFlag("github_repository", flags.Lookup("repository"))
	viper.BindPFlag("github_project", flags.Lookup("project"))
}

// initLogging installs the default slog handler on stderr.
func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	used, err := config.Load(viper.GetViper(), cfgFile, config.Candidates(home))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		os.Exit(1)
	}

	// JIRA_URL, JIRA_USERNAME, JIRA_PASSWORD, GITHUB_TOKEN, ...
	viper.AutomaticEnv()
	viper.BindEnv("backend", "JIRA_BACKEND", "BACKEND")

	if used != "" {
		slog.Debug("Using config file", "path", used)
	}
}
