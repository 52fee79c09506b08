package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sokinpui/snippy/cli"
	"github.com/sokinpui/snippy/internal/ui"
	"github.com/sokinpui/snippy/model"
	"github.com/sokinpui/snippy/snippy"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy [repo-url] [paths or globs...]",
		Short: "Copy files to the clipboard as annotated markdown",
		Long: `Renders every named file under a "### <path>" heading in a fenced code
block and writes the text to the clipboard. Directories are walked;
doublestar globs ("src/**/*.go") are expanded. With no arguments the
working directory is copied.

When the first argument is a repository URL (https://, git@, ssh://...),
it is cloned at depth 1 into a temporary directory and the remaining
arguments are read from the clone.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cli.Bind(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveLogging(cli.Log(v))
			cfg, err := cli.Copy(v, args)
			if err != nil {
				return err
			}
			_, err = snippy.New().Copy(cmd.Context(), cfg)
			return err
		},
	}

	cli.AddCopyFlags(cmd.Flags())
	cli.AddCommonFlags(cmd.Flags())
	return cmd
}

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Write the files found in every new clipboard text",
		Long: `Polls the clipboard and, whenever its text changes, writes every
"### <path>" + fenced block it contains below dir (default: .).

The text already on the clipboard at start is applied too, unless
--skip-initial is set. Text produced by "snippy copy" is recognized by
its header and skipped. Applied batches are journaled in dir/.snippy for "snippy undo".`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cli.Bind(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			level := resolveLogging(cli.Log(v))
			cfg, err := cli.Watch(v, args)
			if err != nil {
				return err
			}
			if level > slog.LevelInfo && v.GetString("log-level") == "" {
				level = slog.LevelInfo
			}
			summary, err := snippy.New(snippy.WithLogLevel(level)).Watch(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ui.Info("%s", summary.Message)
			return nil
		},
	}

	cli.AddWatchFlags(cmd.Flags())
	cli.AddCommonFlags(cmd.Flags())
	return cmd
}

func newApplyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "apply [dir]",
		Short: "Write the files found in piped stdin or the clipboard once",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.Bind(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveLogging(cli.Log(v))
			summary, err := snippy.New().Apply(cmd.Context(), cli.Target(v, args))
			if err != nil {
				return err
			}
			printSummary(summary, false)
			return nil
		},
	}

	cli.AddTargetFlags(cmd.Flags())
	cli.AddCommonFlags(cmd.Flags())
	return cmd
}

func newUndoCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "undo [dir]",
		Short: "Revert the last applied batch",
		Long: `Restores the files the last journaled batch modified and removes the
files it created. Refuses when a file was changed after it was written,
unless --force is set.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cli.Bind(cmd, v) },
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveLogging(cli.Log(v))
			summary, err := snippy.New().Undo(cmd.Context(), cli.Undo(v, args))
			if summary.Message != "" || len(summary.Failed) > 0 {
				printSummary(summary, true)
			}
			return err
		},
	}

	cli.AddUndoFlags(cmd.Flags())
	cli.AddCommonFlags(cmd.Flags())
	return cmd
}

func printSummary(summary model.Summary, revert bool) {
	reporter := ui.NewReporter(os.Stderr)
	switch {
	case revert && (len(summary.Modified) > 0 || len(summary.Failed) > 0):
		reporter.PrintRevertSummary(summary.Modified, summary.Failed)
	case summary.Message != "" && len(summary.Created)+len(summary.Modified)+len(summary.Failed) == 0:
		ui.Info("%s", summary.Message)
	default:
		reporter.PrintUpdateSummary(summary)
	}
}
