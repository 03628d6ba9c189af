package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/aman-cerp/smgrep/internal/errkind"
	"github.com/aman-cerp/smgrep/pkg/version"
)

// handleConn serves every request sent over conn until it's closed or a
// framing error occurs. The first message on a new connection must be
// Hello; anything else is rejected without touching the version state,
// since version agreement is the client's responsibility, not something
// the daemon enforces on itself.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	greeted := false
	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read failed", slog.String("error", err.Error()))
			}
			return
		}
		s.touch()

		if !greeted {
			if req.Type != RequestHello {
				_ = writeFrame(conn, errorResponse(errkind.InvalidRequest, "first message must be hello"))
				return
			}
			greeted = true
		}

		resp := s.dispatch(context.Background(), req)
		if err := writeFrame(conn, resp); err != nil {
			slog.Debug("connection write failed", slog.String("error", err.Error()))
			return
		}
		if req.Type == RequestShutdown {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Type {
	case RequestHello:
		return Response{Type: ResponseHello, BuildID: version.BuildID()}
	case RequestSearch:
		return s.handleSearch(ctx, req)
	case RequestHealth:
		return s.handleHealth()
	case RequestShutdown:
		s.RequestShutdown()
		return Response{Type: ResponseShutdown, Success: true}
	default:
		return errorResponse(errkind.InvalidRequest, "unknown request type")
	}
}

func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	limit := int(req.Limit)
	if limit <= 0 {
		limit = 10
	}

	results, err := s.engine.Search(ctx, req.Query, limit, req.Path, req.Rerank)
	if err != nil {
		return errorResponse(errkind.KindOf(err), err.Error())
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Path:      r.Path,
			Content:   r.Content,
			Score:     r.Score,
			StartLine: uint32(r.StartLine),
			NumLines:  uint32(r.NumLines),
			ChunkType: r.ChunkType,
			IsAnchor:  r.IsAnchor,
		}
	}

	status := StatusReady
	var progress *uint8
	if s.indexing.Load() {
		status = StatusIndexing
		p := uint8(s.progress.Load())
		progress = &p
	}

	return Response{
		Type: ResponseSearch,
		Search: &SearchResponse{
			Results:  out,
			Status:   status,
			Progress: progress,
		},
	}
}

func (s *Server) handleHealth() Response {
	return Response{
		Type: ResponseHealth,
		Status: &ServerStatus{
			Indexing: s.indexing.Load(),
			Progress: uint8(s.progress.Load()),
			Files:    uint32(len(s.manifest.Paths())),
		},
	}
}

func errorResponse(kind errkind.Kind, message string) Response {
	return Response{Type: ResponseError, Message: string(kind) + ": " + message}
}
