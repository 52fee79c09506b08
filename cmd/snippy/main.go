// snippy: move code between the clipboard and the filesystem.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/cli"
	"github.com/sokinpui/snippy/internal/logging"
	"github.com/sokinpui/snippy/snippy"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "snippy",
		Short: "Move code between the clipboard and the filesystem",
		Long: `snippy copies files to the clipboard as path-annotated markdown, and
writes the files found in clipboard text (typically an LLM response) back
to disk.

  snippy copy src/**/*.go     put files on the clipboard
  snippy watch                apply every new clipboard text below .
  snippy apply                apply piped stdin or the clipboard once
  snippy undo                 revert the last applied batch

Config file search order (first found wins):
  path supplied via --config
  ./.snippy.toml
  $HOME/.config/snippy/snippy.toml

All flags can be set via SNIPPY_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newCopyCmd(),
		newWatchCmd(),
		newApplyCmd(),
		newUndoCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var detailed *snippy.DetailedError
		if errors.As(err, &detailed) {
			slog.Debug("Stack trace", "stack", string(detailed.Stack))
		}
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "snippy %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed and
// returns the chosen level.
func resolveLogging(cfg cli.LogConfig) slog.Level {
	level := logging.ParseLevel(cfg.Level)
	logging.Setup(logging.ParseFormat(cfg.Format), level)
	return level
}
