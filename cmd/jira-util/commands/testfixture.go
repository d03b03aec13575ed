package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goblinsan/jira-util/pkg/engine"
	"github.com/goblinsan/jira-util/pkg/render"
	"github.com/spf13/cobra"
)

// step is one stage of a test-fixture chain.
type step int

const (
	stepReset step = iota
	stepAssert
	stepTrigger
)

func (s step) String() string {
	switch s {
	case stepReset:
		return "reset"
	case stepAssert:
		return "assert"
	case stepTrigger:
		return "trigger"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func parseStep(token string) (step, bool) {
	switch strings.ToLower(token) {
	case "reset", "r":
		return stepReset, true
	case "assert", "a":
		return stepAssert, true
	case "trigger", "t":
		return stepTrigger, true
	}
	return 0, false
}

// chain is a parsed sequence of steps plus the optional positional
// test-set label given after reset or assert.
type chain struct {
	steps []step
	label string
}

func (c chain) has(s step) bool {
	for _, x := range c.steps {
		if x == s {
			return true
		}
	}
	return false
}

func parseChain(args []string) (chain, error) {
	var c chain
	for _, arg := range args {
		if s, ok := parseStep(arg); ok {
			c.steps = append(c.steps, s)
			continue
		}
		if len(c.steps) == 0 {
			return chain{}, fmt.Errorf("unknown step %q (want reset, assert or trigger)", arg)
		}
		if c.steps[len(c.steps)-1] == stepTrigger {
			return chain{}, fmt.Errorf("unexpected argument %q after trigger (pass trigger labels with -l)", arg)
		}
		if c.label != "" && c.label != arg {
			return chain{}, fmt.Errorf("conflicting test-set labels %q and %q", c.label, arg)
		}
		c.label = arg
	}
	if len(c.steps) == 0 {
		return chain{}, errors.New("no step given (want reset, assert or trigger)")
	}
	return c, nil
}

// chainOptions are the flag values shared by every step.
type chainOptions struct {
	testSetLabel  string
	triggerLabels []string
	triggerKey    string
	forceVia      string
	toggleDelay   time.Duration
}

var errFixturesFailed = errors.New("one or more fixtures failed")

// resolveLabel picks the test-set label: positional, then --tsl, then -l
// when the chain has no trigger step, then the configured default.
func resolveLabel(c chain, opts chainOptions, fallback string) (string, error) {
	if c.label != "" {
		return c.label, nil
	}
	if opts.testSetLabel != "" {
		return opts.testSetLabel, nil
	}
	if !c.has(stepTrigger) && len(opts.triggerLabels) > 0 {
		labels := engine.ParseLabels(opts.triggerLabels...)
		if len(labels) > 1 {
			return "", fmt.Errorf("only one test-set label may be given, got %d", len(labels))
		}
		if len(labels) == 1 {
			return labels[0], nil
		}
	}
	return fallback, nil
}

// runChain executes the steps in order. Failing reports keep the chain
// going but make it return errFixturesFailed; any other error stops it.
func runChain(ctx context.Context, repo engine.Repository, c chain, label string, opts chainOptions, printer *render.Printer) error {
	failed := false
	for _, s := range c.steps {
		slog.Debug("Running step", "step", s, "label", label)
		switch s {
		case stepReset:
			report, err := engine.RunReset(ctx, repo, label, engine.ResetOptions{ForceVia: opts.forceVia, Logger: slog.Default()})
			if err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			if err := printer.Report(report); err != nil {
				return err
			}
			failed = failed || !report.OverallSuccess

		case stepAssert:
			report, err := engine.RunAssert(ctx, repo, label, engine.AssertOptions{Logger: slog.Default()})
			if err != nil {
				return fmt.Errorf("assert failed: %w", err)
			}
			if err := printer.Report(report); err != nil {
				return err
			}
			failed = failed || !report.OverallSuccess

		case stepTrigger:
			res, err := engine.Trigger(ctx, repo, opts.triggerKey, opts.triggerLabels, engine.TriggerOptions{
				ToggleDelay: opts.toggleDelay,
				Logger:      slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("trigger failed: %w", err)
			}
			if err := printer.Trigger(res); err != nil {
				return err
			}
		}
	}
	if failed {
		return errFixturesFailed
	}
	return nil
}

func init() {
	rootCmd.AddCommand(testFixtureCmd)
	flags := testFixtureCmd.Flags()
	flags.String("tsl", "", "test-set label selecting the fixture issues (default from config, rule-testing)")
	flags.StringArrayP("label", "l", nil, "trigger label(s), comma separated or repeated; the test-set label when no trigger step runs")
	flags.StringArray("tl", nil, "alias for --label")
	flags.StringP("key", "k", "", "issue key to trigger (default from config trigger_issue_key)")
	flags.String("force-via", "", "move fixtures already in their start status through this status first")
	flags.StringP("output", "o", "text", "output format: text, json or yaml")
	flags.MarkHidden("tl")
}

var testFixtureCmd = &cobra.Command{
	Use:     "test-fixture <step>... [label]",
	Aliases: []string{"tf"},
	Short:   "Reset, assert and trigger test fixtures",
	Long: `Run one or more fixture steps in order:

  reset (r)    move every labelled fixture to the status its summary starts in
  assert (a)   check every labelled fixture is in the status its summary expects
  trigger (t)  toggle or replace labels on the trigger issue to fire automation

A label given right after reset or assert selects the fixture set. Steps can
be chained, e.g. "jira-util tf r t a --tsl rule-testing -l run-rules".
The command exits non-zero when any reset or assertion fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := parseChain(args)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		format, err := render.ParseFormat(output)
		if err != nil {
			return err
		}

		cfg, err := requireConfig(true)
		if err != nil {
			return err
		}

		opts := chainOptions{toggleDelay: cfg.ToggleDelay}
		opts.testSetLabel, _ = cmd.Flags().GetString("tsl")
		opts.forceVia, _ = cmd.Flags().GetString("force-via")
		opts.triggerKey, _ = cmd.Flags().GetString("key")
		labels, _ := cmd.Flags().GetStringArray("label")
		aliased, _ := cmd.Flags().GetStringArray("tl")
		opts.triggerLabels = append(labels, aliased...)
		if opts.triggerKey == "" {
			opts.triggerKey = cfg.TriggerIssueKey
		}

		label, err := resolveLabel(c, opts, cfg.DefaultLabel)
		if err != nil {
			return err
		}

		repo, err := newRepository(cfg)
		if err != nil {
			return fmt.Errorf("failed to create %s client: %w", cfg.Backend, err)
		}

		printer := render.NewPrinter(cmd.OutOrStdout(), format)
		return runChain(cmd.Context(), repo, c, label, opts, printer)
	},
}
