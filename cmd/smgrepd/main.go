// Command smgrepd is the standalone per-store daemon binary: the same
// process daemon.Serve assembles for "smgrep serve", packaged separately so
// it can be deployed, supervised, or resource-limited on its own.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/smgrep/internal/config"
	"github.com/aman-cerp/smgrep/internal/daemon"
	"github.com/aman-cerp/smgrep/internal/storeid"
	"github.com/aman-cerp/smgrep/pkg/version"
)

func main() {
	var path string
	var storeOverride string

	cmd := &cobra.Command{
		Use:     "smgrepd",
		Short:   "Run the smgrep search daemon for one project root",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := path
			if root == "" {
				var err error
				root, err = config.FindProjectRoot(".")
				if err != nil {
					root, _ = os.Getwd()
				}
			}

			var id storeid.ID
			switch {
			case storeOverride != "":
				id = storeid.ID(storeOverride)
			case os.Getenv("SMGREP_STORE") != "":
				id = storeid.ID(os.Getenv("SMGREP_STORE"))
			default:
				var err error
				id, err = storeid.FromPath(root)
				if err != nil {
					return fmt.Errorf("derive store id: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return daemon.Serve(ctx, root, id)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Project root to serve (default: detected project root)")
	cmd.Flags().StringVar(&storeOverride, "store", "", "Override the derived store id (env SMGREP_STORE)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "smgrepd:", err)
		os.Exit(1)
	}
}
