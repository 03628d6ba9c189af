package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/smgrep/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	var path string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon for a project is running and indexed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, path, jsonOut)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Directory to check (default: cwd's project root)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, path string, jsonOut bool) error {
	root, err := resolveRoot(path)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	storeID, err := resolveStoreID(root)
	if err != nil {
		return fmt.Errorf("resolve store id: %w", err)
	}

	client, err := daemon.Dial(ctx, root, storeID)
	if err != nil || client == nil {
		if jsonOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(map[string]any{"running": false})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "daemon is not running")
		return nil
	}
	defer client.Close()

	status, err := client.Health()
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"running": true, "status": status})
	}

	fmt.Fprintln(cmd.OutOrStdout(), "daemon is running")
	fmt.Fprintf(cmd.OutOrStdout(), "  indexing: %v\n", status.Indexing)
	if status.Indexing {
		fmt.Fprintf(cmd.OutOrStdout(), "  progress: %d%%\n", status.Progress)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  files:    %d\n", status.Files)
	return nil
}
