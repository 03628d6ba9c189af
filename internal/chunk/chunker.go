package chunk

import (
	"context"
	"strconv"
	"sync"

	"github.com/aman-cerp/smgrep/internal/errkind"
	"github.com/aman-cerp/smgrep/internal/grammar"
)

// SyntaxChunker is the Chunker implementation used by the daemon: it tries
// a tree-sitter-backed definition walk first, falls back to a deterministic
// sliding window when no grammar is available or no definitions are found,
// then re-splits any chunk that is still too big and prepends a synthetic
// anchor chunk summarizing the file's imports/exports.
type SyntaxChunker struct {
	grammar *grammar.Registry
	mu      sync.Mutex // guards parser, which is not safe for concurrent use
	parser  *Parser
}

// NewSyntaxChunker builds a chunker backed by the given grammar registry.
func NewSyntaxChunker(reg *grammar.Registry) *SyntaxChunker {
	return &SyntaxChunker{grammar: reg, parser: NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (c *SyntaxChunker) Close() { c.parser.Close() }

// SupportedExtensions returns every extension the grammar registry knows
// how to at least attempt (compiled languages are guaranteed; downloadable
// ones are attempted and fall back to the sliding window on failure, so
// every extension is "supported" in the sense that Chunk never refuses a
// file outright).
func (c *SyntaxChunker) SupportedExtensions() []string {
	return nil // any extension is accepted; grammar availability only changes chunking quality.
}

// Chunk splits file into chunks, always returning full coverage of the
// file's content even when no grammar is available.
func (c *SyntaxChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	var raw []*Chunk
	var anchor *Chunk

	handle, err := c.resolveHandle(ctx, file)
	if err == nil {
		c.mu.Lock()
		tree, perr := c.parser.Parse(ctx, file.Content, handle.Language, handle.Name)
		c.mu.Unlock()
		if perr == nil {
			if chunks, ok := chunkWithTreeSitter(file.Content, tree, handle.Name); ok {
				raw = chunks
			}
			anchor = buildAnchorChunk(file.Content, tree, handle.Name)
		}
	}

	if raw == nil {
		raw = simpleChunk(file.Content, file.Language)
	}
	if anchor != nil {
		raw = append([]*Chunk{anchor}, raw...)
	}

	out := make([]*Chunk, 0, len(raw))
	for _, rc := range raw {
		out = append(out, splitIfTooBig(rc)...)
	}

	for i, ch := range out {
		ch.FilePath = file.Path
		ch.ChunkIndex = i
		ch.ID = file.Path + ":" + strconv.Itoa(i)
	}

	return out, nil
}

func (c *SyntaxChunker) resolveHandle(ctx context.Context, file *FileInput) (*grammar.Handle, error) {
	if c.grammar == nil {
		return nil, errkind.New(errkind.GrammarUnavailable, "no grammar registry configured")
	}
	if file.Language != "" {
		return c.grammar.Resolve(ctx, file.Language)
	}
	return c.grammar.ResolveForPath(ctx, file.Path)
}
