package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/smgrep/internal/daemon"
)

func newServeCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run the search daemon in the foreground for one store",
		Hidden: true,
		Long: `Run the per-store daemon that owns the socket, index and watcher for
one project root.

This is normally spawned automatically by 'smgrep search' the first time
it can't reach a daemon for the current project; run it directly only to
debug daemon behavior.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), path)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Directory to serve (default: detected project root)")
	return cmd
}

func runServe(ctx context.Context, path string) error {
	root, err := resolveRoot(path)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	storeID, err := resolveStoreID(root)
	if err != nil {
		return fmt.Errorf("resolve store id: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return daemon.Serve(ctx, root, storeID)
}
