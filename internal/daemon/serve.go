package daemon

import (
	"context"
	"fmt"

	"github.com/aman-cerp/smgrep/internal/config"
	"github.com/aman-cerp/smgrep/internal/embed"
	"github.com/aman-cerp/smgrep/internal/storeid"
)

// Serve loads config, builds the standard embedder, and runs a Server for
// root/id until ctx is cancelled. It is the single entry point both
// cmd/smgrep's "serve" subcommand and the standalone smgrepd binary call,
// so the two never drift in how a daemon process is assembled.
func Serve(ctx context.Context, root string, id storeid.ID) error {
	cfg, err := config.Load(config.BaseDir())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	embedder := embed.NewHybridEmbedder(cfg.DenseDim, cfg.ColbertDim, cfg.DenseMaxLength, cfg.QueryPrefix)

	srv, err := NewServer(root, id, cfg, embedder)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	return srv.Run(ctx)
}
