// Package daemon implements the per-store search daemon: its Unix socket
// wire protocol, lifecycle state machine, initial/incremental sync pipeline,
// and the client-side connect/spawn/respawn logic used by the CLI.
package daemon

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameSize bounds a single message so a corrupt or hostile peer can't
// make us allocate an unbounded buffer from a bogus length prefix.
const maxFrameSize = 64 * 1024 * 1024

// RequestType discriminates the closed set of request envelopes.
type RequestType string

const (
	RequestHello    RequestType = "hello"
	RequestSearch   RequestType = "search"
	RequestHealth   RequestType = "health"
	RequestShutdown RequestType = "shutdown"
)

// Request is the envelope for every inbound message. Exactly one of the
// type-specific fields is populated, matching Type.
type Request struct {
	Type RequestType `json:"type"`

	// Hello
	BuildID string `json:"build_id,omitempty"`

	// Search
	Query  string `json:"query,omitempty"`
	Limit  uint32 `json:"limit,omitempty"`
	Path   string `json:"path,omitempty"`
	Rerank bool   `json:"rerank,omitempty"`
}

// ResponseType discriminates the closed set of response envelopes.
type ResponseType string

const (
	ResponseHello    ResponseType = "hello"
	ResponseSearch   ResponseType = "search"
	ResponseHealth   ResponseType = "health"
	ResponseShutdown ResponseType = "shutdown"
	ResponseError    ResponseType = "error"
)

// Response is the envelope for every outbound message.
type Response struct {
	Type ResponseType `json:"type"`

	// Hello
	BuildID string `json:"build_id,omitempty"`

	// Search
	Search *SearchResponse `json:"search,omitempty"`

	// Health
	Status *ServerStatus `json:"status,omitempty"`

	// Shutdown
	Success bool `json:"success,omitempty"`

	// Error
	Message string `json:"message,omitempty"`
}

// SearchStatus reports whether the store has finished its initial sync.
type SearchStatus string

const (
	StatusReady    SearchStatus = "ready"
	StatusIndexing SearchStatus = "indexing"
)

// SearchResponse is the payload of a successful Search response.
type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Status   SearchStatus   `json:"status"`
	Progress *uint8         `json:"progress,omitempty"`
}

// SearchResult is one ranked hit, with a repo-relative path.
type SearchResult struct {
	Path      string  `json:"path"`
	Content   string  `json:"content"`
	Score     float32 `json:"score"`
	StartLine uint32  `json:"start_line"` // 0-based
	NumLines  uint32  `json:"num_lines"`
	ChunkType string  `json:"chunk_type"`
	IsAnchor  bool    `json:"is_anchor"`
}

// ServerStatus is the payload of a Health response.
type ServerStatus struct {
	Indexing bool   `json:"indexing"`
	Progress uint8  `json:"progress"`
	Files    uint32 `json:"files"`
}

// frameWriter and frameReader implement the shared u32-length-prefixed,
// JSON-body wire framing used by both the daemon and its clients.

func writeFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(body))
	}
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	return json.Unmarshal(body, v)
}
