// Command mcp-bridge exposes one MCP tool, search_code, that proxies a
// search call to the per-project smgrep daemon. It owns no index state of
// its own: every call connects (spawning the daemon if needed), searches,
// and returns.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aman-cerp/smgrep/internal/config"
	"github.com/aman-cerp/smgrep/internal/daemon"
	"github.com/aman-cerp/smgrep/internal/storeid"
	"github.com/aman-cerp/smgrep/pkg/version"
)

// SearchInput is the input for search_code.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"The search query. Natural language description of the code you're looking for."`
	Path     string `json:"path,omitempty" jsonschema:"Project directory to search. Defaults to the project root containing the current working directory."`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of results to return (default 10)."`
	Filter   string `json:"filter,omitempty" jsonschema:"Restrict results to paths starting with this repo-relative prefix."`
	NoRerank bool   `json:"no_rerank,omitempty" jsonschema:"Skip ColBERT reranking for a faster, coarser search."`
}

func main() {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "smgrep",
		Version: version.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: "smgrep provides semantic code search backed by a local indexing daemon. " +
			"Call search_code with a natural-language query and, if known, the project path; " +
			"the daemon is started automatically on first use and kept warm afterward.",
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "search_code",
		Description: "Search a codebase by meaning and return the most relevant chunks.",
	}, handleSearchCode)

	if err := server.Run(context.Background(), &sdkmcp.StdioTransport{}); err != nil {
		fmt.Fprintln(os.Stderr, "mcp-bridge:", err)
		os.Exit(1)
	}
}

func handleSearchCode(ctx context.Context, req *sdkmcp.CallToolRequest, input SearchInput) (*sdkmcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query is required"), nil, nil
	}

	root := input.Path
	if root == "" {
		var err error
		root, err = config.FindProjectRoot(".")
		if err != nil {
			root, _ = os.Getwd()
		}
	}

	storeID, err := storeid.FromPath(root)
	if err != nil {
		return errorResult(fmt.Sprintf("resolve store id: %v", err)), nil, nil
	}

	client, err := daemon.Connect(ctx, root, storeID)
	if err != nil {
		return errorResult(fmt.Sprintf("connect to daemon: %v", err)), nil, nil
	}
	defer client.Close()

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	resp, err := client.Search(input.Query, limit, input.Filter, !input.NoRerank)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil, nil
	}

	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: formatResults(resp)}},
	}, nil, nil
}

func formatResults(resp *daemon.SearchResponse) string {
	if len(resp.Results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	if resp.Status == daemon.StatusIndexing && resp.Progress != nil {
		fmt.Fprintf(&sb, "(index still building: %d%%)\n\n", *resp.Progress)
	}
	fmt.Fprintf(&sb, "Found %d results:\n\n", len(resp.Results))
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "### %d. %s:%d (score %.3f, %s)\n", i+1, r.Path, r.StartLine, r.Score, r.ChunkType)
		sb.WriteString("```\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n```\n\n")
	}
	return sb.String()
}

func errorResult(msg string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: msg}},
		IsError: true,
	}
}
