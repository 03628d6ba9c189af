package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/aman-cerp/smgrep/internal/daemon"
)

// isOutputTerminal reports whether w is a terminal, so plain output (JSON
// piped to a file, redirected logs) never carries ANSI escapes.
func isOutputTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

type searchOptions struct {
	path     string
	max      int
	content  bool
	compact  bool
	scores   bool
	jsonOut  bool
	noRerank bool
	plain    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase by meaning.

Examples:
  smgrep search "retry with backoff"
  smgrep search "parse config file" --content
  smgrep search "auth middleware" --path internal/auth --max 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.max, "max", "m", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.path, "path", "", "Restrict results to paths starting with this repo-relative prefix")
	cmd.Flags().BoolVarP(&opts.content, "content", "c", false, "Show full chunk content")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Show file paths only, one per line")
	cmd.Flags().BoolVar(&opts.scores, "scores", false, "Show relevance scores")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Skip ColBERT reranking")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Disable ANSI colors")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	root, err := resolveRoot("")
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	storeID, err := resolveStoreID(root)
	if err != nil {
		return fmt.Errorf("resolve store id: %w", err)
	}

	client, err := daemon.Connect(ctx, root, storeID)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer client.Close()

	resp, err := client.Search(query, opts.max, opts.path, !opts.noRerank)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printResults(cmd, resp, opts)
}

func printResults(cmd *cobra.Command, resp *daemon.SearchResponse, opts searchOptions) error {
	out := cmd.OutOrStdout()
	color := !opts.plain && isOutputTerminal(out)

	if resp.Status == daemon.StatusIndexing && resp.Progress != nil {
		fmt.Fprintf(out, "(index building: %d%%)\n", *resp.Progress)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	for _, r := range resp.Results {
		location := fmt.Sprintf("%s:%d", r.Path, r.StartLine)
		if opts.compact {
			fmt.Fprintln(out, r.Path)
			continue
		}
		if opts.scores {
			fmt.Fprintf(out, "%s  (score %.3f, %s)\n", location, r.Score, r.ChunkType)
		} else if color {
			fmt.Fprintf(out, "\033[1m%s\033[0m  (%s)\n", location, r.ChunkType)
		} else {
			fmt.Fprintf(out, "%s  (%s)\n", location, r.ChunkType)
		}
		if opts.content {
			fmt.Fprintln(out, r.Content)
			fmt.Fprintln(out)
		}
	}
	return nil
}
