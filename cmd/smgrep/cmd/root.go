// Package cmd provides the CLI commands for smgrep.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/smgrep/internal/logging"
	"github.com/aman-cerp/smgrep/pkg/version"
)

var (
	storeOverride string
	debugMode     bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the smgrep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "smgrep",
		Short:   "Semantic code search over a local index daemon",
		Version: version.Version,
		Long: `smgrep searches a codebase by meaning, not just keywords.

A background daemon keeps the embedder and vector index warm for one
store per project root; this CLI spawns it on first use and talks to it
over a Unix socket for every search after that.`,
	}

	cmd.SetVersionTemplate("smgrep version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&storeOverride, "store", "", "Override the derived store id (env SMGREP_STORE)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the smgrep log directory")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
