package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aman-cerp/smgrep/internal/chunk"
	"github.com/aman-cerp/smgrep/internal/config"
	"github.com/aman-cerp/smgrep/internal/embed"
	"github.com/aman-cerp/smgrep/internal/errkind"
	"github.com/aman-cerp/smgrep/internal/grammar"
	"github.com/aman-cerp/smgrep/internal/manifest"
	"github.com/aman-cerp/smgrep/internal/search"
	"github.com/aman-cerp/smgrep/internal/storeid"
	"github.com/aman-cerp/smgrep/internal/store"
	"github.com/aman-cerp/smgrep/internal/watcher"
	"github.com/aman-cerp/smgrep/pkg/version"
)

// state is the daemon's lifecycle position.
type state int32

const (
	stateBooting state = iota
	stateReady
	stateDraining
	stateExited
)

// Server owns one store's socket, indexing pipeline, and watcher for the
// lifetime of a single daemon process.
type Server struct {
	root    string
	storeID storeid.ID
	paths   Paths
	cfg     config.Config

	vectors  *store.Store
	embedder embed.Embedder
	pool     *embed.Pool
	chunker  *chunk.SyntaxChunker
	engine   *search.Engine
	manifest *manifest.Manifest
	watch    *watcher.HybridWatcher

	listener net.Listener
	state    atomic.Int32

	indexing atomic.Bool
	progress atomic.Uint32

	activityMu   sync.Mutex
	lastActivity time.Time

	gitignoreMu   sync.Mutex
	lastGitignore string

	conns sync.WaitGroup
	quit  chan struct{}
}

// NewServer wires up a Server for root, deriving every per-store path from
// storeID. It does not bind the socket or start background work; call Run.
func NewServer(root string, id storeid.ID, cfg config.Config, embedder embed.Embedder) (*Server, error) {
	paths := ResolvePaths(id)

	if err := os.MkdirAll(paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(paths.ManifestPath), 0o755); err != nil {
		return nil, fmt.Errorf("create meta dir: %w", err)
	}

	vectors, err := store.Open(context.Background(), filepath.Join(paths.DataDir, "vectors.db"), store.DefaultVectorStoreConfig(cfg.DenseDim))
	if err != nil {
		return nil, errkind.Wrap(errkind.StoreIO, "open vector store", err)
	}

	man, err := manifest.Load(paths.ManifestPath)
	if err != nil {
		vectors.Close()
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	reg := grammar.NewRegistry().WithDownloader(grammar.NewHTTPDownloader(config.GrammarDir()))
	chunker := chunk.NewSyntaxChunker(reg)
	pool := embed.NewPool(embedder, cfg.WorkerCount(), cfg.BatchSize(), time.Duration(cfg.WorkerTimeoutMs)*time.Millisecond)

	engine := search.NewEngine(search.EngineConfig{
		Embedder:     embedder,
		Store:        vectors,
		Oversampling: cfg.OversamplingFactor,
		MinRecall:    cfg.MinRecall,
		ColbertBlend: float32(cfg.ColbertBlendAlpha),
		PerFileLimit: cfg.PerFileLimit,
	})

	s := &Server{
		root:     root,
		storeID:  id,
		paths:    paths,
		cfg:      cfg,
		vectors:  vectors,
		embedder: embedder,
		pool:     pool,
		chunker:  chunker,
		engine:   engine,
		manifest: man,
		quit:     make(chan struct{}),
	}
	s.touch()
	return s, nil
}

// Run executes the full Booting → Ready → Draining → Exited lifecycle,
// blocking until ctx is cancelled or a Shutdown request is received.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.paths.SocketPath), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	if err := s.claimSocket(); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.paths.SocketPath)
	if err != nil {
		return errkind.Wrap(errkind.StoreIO, "bind socket", err)
	}
	s.listener = ln

	pidFile := NewPIDFile(s.paths.PIDPath)
	if err := pidFile.Write(); err != nil {
		slog.Warn("writing pid file", slog.String("error", err.Error()))
	}

	s.state.Store(int32(stateReady))
	slog.Info("daemon ready", slog.String("store_id", string(s.storeID)), slog.String("socket", s.paths.SocketPath))

	empty, err := s.vectors.IsEmpty(ctx)
	if err != nil {
		return errkind.Wrap(errkind.StoreCorrupt, "check store emptiness", err)
	}
	if empty {
		s.indexing.Store(true)
		go s.runInitialSync(ctx)
	}

	if err := s.startWatcher(ctx); err != nil {
		slog.Warn("watcher failed to start, continuing without live updates", slog.String("error", err.Error()))
	}

	go s.idleLoop(ctx)

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop()
	}()

	select {
	case <-ctx.Done():
	case <-s.quit:
	case err := <-acceptErr:
		if err != nil {
			slog.Error("accept loop stopped", slog.String("error", err.Error()))
		}
	}

	return s.drain()
}

func (s *Server) claimSocket() error {
	if _, err := os.Stat(s.paths.SocketPath); err == nil {
		if conn, dialErr := net.DialTimeout("unix", s.paths.SocketPath, 200*time.Millisecond); dialErr == nil {
			_ = conn.Close()
			return errkind.New(errkind.InvalidRequest, "daemon already running for this store")
		}
		if err := os.Remove(s.paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}
	return nil
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.state.Load() == int32(stateDraining) {
				return nil
			}
			return err
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) drain() error {
	s.state.Store(int32(stateDraining))
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.conns.Wait()
	if s.watch != nil {
		_ = s.watch.Stop()
	}
	s.pool.Shutdown()
	s.chunker.Close()
	if err := s.vectors.Close(); err != nil {
		slog.Warn("closing vector store", slog.String("error", err.Error()))
	}
	_ = os.Remove(s.paths.SocketPath)
	_ = NewPIDFile(s.paths.PIDPath).Remove()
	s.state.Store(int32(stateExited))
	slog.Info("daemon exited", slog.String("store_id", string(s.storeID)))
	return nil
}

// RequestShutdown signals Run to begin draining, as if a Shutdown request
// had arrived over the socket.
func (s *Server) RequestShutdown() {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
}

func (s *Server) touch() {
	s.activityMu.Lock()
	s.lastActivity = time.Now()
	s.activityMu.Unlock()
}

func (s *Server) idleDuration() time.Duration {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *Server) idleLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.IdleCheckInterval) * time.Second
	timeout := time.Duration(s.cfg.IdleTimeoutSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			if s.idleDuration() > timeout {
				slog.Info("idle timeout reached, shutting down")
				s.RequestShutdown()
				return
			}
		}
	}
}
