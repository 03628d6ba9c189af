package cmd

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/smgrep/internal/daemon"
)

func newStopCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon for a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStop(cmd.Context(), cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Directory of the daemon to stop (default: cwd's project root)")
	return cmd
}

func runStop(ctx context.Context, cmd *cobra.Command, path string) error {
	root, err := resolveRoot(path)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	storeID, err := resolveStoreID(root)
	if err != nil {
		return fmt.Errorf("resolve store id: %w", err)
	}

	paths := daemon.ResolvePaths(storeID)
	pidFile := daemon.NewPIDFile(paths.PIDPath)
	if !pidFile.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "daemon is not running")
		return nil
	}

	client, err := daemon.Dial(ctx, root, storeID)
	if err != nil || client == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "daemon unreachable, escalating to signal")
		return escalateStop(cmd, pidFile)
	}
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		return escalateStop(cmd, pidFile)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "daemon stopped")
	return nil
}

func escalateStop(cmd *cobra.Command, pidFile *daemon.PIDFile) error {
	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon: %w", err)
	}
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			fmt.Fprintln(cmd.OutOrStdout(), "daemon stopped")
			return nil
		}
	}
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill daemon: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "daemon killed")
	return nil
}
