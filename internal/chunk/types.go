package chunk

import (
	"context"
)

// ContentType represents the type of content in a chunk
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// Chunk is a retrievable unit of content, produced by a Chunker and later
// embedded and stored as a VectorRecord (see internal/store).
type Chunk struct {
	ID          string            // set by SyntaxChunker.Chunk as "{path}:{chunk_index}"
	FilePath    string            // relative to project root
	Content     string            // full content of the chunk
	ContentType ContentType       // code, markdown, text
	Language    string            // go, typescript, python, etc.
	StartLine   int               // 0-based, inclusive
	EndLine     int               // 0-based, exclusive
	Metadata    map[string]string // free-form metadata (e.g. the definition label)

	ChunkIndex  int    // position of this chunk within the file, 0-based
	IsAnchor    bool   // synthetic file-header chunk
	ChunkType   string // "Class", "Interface", "TypeAlias", "Block", "Other" (function/method kept only in context crumbs)
	ContextPrev string // first (outermost) crumb of the enclosing definitions, if any
	ContextNext string // last (innermost) crumb of the enclosing definitions, if any
}

// FileInput is input for the Chunker interface
type FileInput struct {
	Path     string // Relative path
	Content  []byte // File content
	Language string // go, typescript, python, etc.
}

// Chunker is the interface for splitting files into chunks
type Chunker interface {
	// Chunk splits a file into semantic chunks
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)

	// SupportedExtensions returns file extensions this chunker handles
	SupportedExtensions() []string
}

// Tree represents a parsed AST
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	Parent     *Node
	HasError   bool
}

// StartLine returns the node's 0-based, inclusive start line.
func (n *Node) StartLine() int { return int(n.StartPoint.Row) }

// EndLine returns the node's 0-based, exclusive end line: tree-sitter's own
// end_position.row is the 0-based row still holding the node's last byte
// (inclusive), so the closed-open upper bound is one past it.
func (n *Node) EndLine() int { return int(n.EndPoint.Row) + 1 }

// Point represents a position in the source code
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}
