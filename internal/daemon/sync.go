package daemon

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aman-cerp/smgrep/internal/chunk"
	"github.com/aman-cerp/smgrep/internal/errkind"
	"github.com/aman-cerp/smgrep/internal/gitignore"
	"github.com/aman-cerp/smgrep/internal/grammar"
	"github.com/aman-cerp/smgrep/internal/manifest"
	"github.com/aman-cerp/smgrep/internal/store"
	"github.com/aman-cerp/smgrep/internal/watcher"
)

// chunkTypeFor maps a chunker's descriptive ChunkType ("Class", "Interface",
// ...) onto the store's lowercase ranking tiers.
func chunkTypeFor(t string) store.ChunkType {
	switch t {
	case "Class":
		return store.ChunkTypeClass
	case "Interface":
		return store.ChunkTypeInterface
	case "TypeAlias":
		return store.ChunkTypeTypeAlias
	case "Block":
		return store.ChunkTypeBlock
	default:
		return store.ChunkTypeOther
	}
}

// processFile re-chunks and re-embeds relPath if its content has changed
// since the last sync, replacing its records in the vector store and
// updating the manifest. It is the unit of work shared by the initial sync
// walk and the live watcher, and is safe to call concurrently for
// different paths but must be serialized per path by the caller.
func (s *Server) processFile(ctx context.Context, relPath string) error {
	content, err := os.ReadFile(filepath.Join(s.root, relPath))
	if err != nil {
		return errkind.Wrap(errkind.StoreIO, "read "+relPath, err)
	}

	if s.manifest.Unchanged(relPath, content) {
		return nil
	}

	lang, _ := grammar.LanguageForExtension(filepath.Ext(relPath))

	chunks, err := s.chunker.Chunk(ctx, &chunk.FileInput{
		Path:     relPath,
		Content:  content,
		Language: lang,
	})
	if err != nil {
		return errkind.Wrap(errkind.GrammarUnavailable, "chunk "+relPath, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := s.pool.ComputeBatch(ctx, texts)
	if err != nil {
		return errkind.Wrap(errkind.EmbedFailed, "embed "+relPath, err)
	}

	hash := manifest.HashContent(content)
	records := make([]*store.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = &store.VectorRecord{
			ID:           relPath + ":" + strconv.Itoa(c.ChunkIndex),
			Path:         relPath,
			Hash:         hash,
			Content:      c.Content,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			ChunkIndex:   c.ChunkIndex,
			IsAnchor:     c.IsAnchor,
			ChunkType:    chunkTypeFor(c.ChunkType),
			ContextPrev:  c.ContextPrev,
			ContextNext:  c.ContextNext,
			Dense:        embeddings[i].Dense,
			Colbert:      embeddings[i].Colbert,
			ColbertScale: embeddings[i].Scale,
		}
	}

	if err := s.vectors.InsertBatch(ctx, records); err != nil {
		return errkind.Wrap(errkind.StoreIO, "insert "+relPath, err)
	}

	s.manifest.Set(relPath, hash)
	return nil
}

// removeFile drops relPath from the store and manifest.
func (s *Server) removeFile(ctx context.Context, relPath string) error {
	if err := s.vectors.DeleteFile(ctx, relPath); err != nil {
		return errkind.Wrap(errkind.StoreIO, "delete "+relPath, err)
	}
	s.manifest.Delete(relPath)
	return nil
}

// ignoreMatcher builds the gitignore matcher used to filter the initial
// walk, loading .gitignore plus the always-ignored .smgrep directory.
func (s *Server) ignoreMatcher() *gitignore.Matcher {
	m := gitignore.New()
	m.AddPattern(".smgrep/")
	m.AddPattern(".smgrep/**")
	m.AddPattern(".git/")
	_ = m.AddFromFile(filepath.Join(s.root, ".gitignore"), s.root)
	return m
}

// runInitialSync walks root, syncing every non-ignored file and reporting
// coarse progress. It runs once, in the background, while the daemon
// already accepts connections and answers searches in Indexing status.
func (s *Server) runInitialSync(ctx context.Context) {
	ignore := s.ignoreMatcher()

	if content, err := os.ReadFile(filepath.Join(s.root, ".gitignore")); err == nil {
		s.gitignoreMu.Lock()
		s.lastGitignore = string(content)
		s.gitignoreMu.Unlock()
	}

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		slog.Error("initial sync walk failed", slog.String("error", err.Error()))
	}

	total := len(paths)
	for i, rel := range paths {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		default:
		}

		if err := s.processFile(ctx, rel); err != nil {
			slog.Warn("initial sync: skipping file", slog.String("path", rel), slog.String("error", err.Error()))
		}

		pct := uint32(0)
		if total > 0 {
			pct = uint32((i + 1) * 100 / total)
		}
		s.progress.Store(pct)
	}

	if err := s.manifest.Save(); err != nil {
		slog.Warn("initial sync: saving manifest", slog.String("error", err.Error()))
	}

	s.progress.Store(100)
	s.indexing.Store(false)
	slog.Info("initial sync complete", slog.Int("files", total))
}

// startWatcher starts the live filesystem watcher. Start itself runs the
// fsnotify/polling loop and blocks until ctx is done or Stop is called, so
// it's launched in its own goroutine; the dispatch loop below drains
// Events() separately.
func (s *Server) startWatcher(ctx context.Context) error {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return err
	}
	s.watch = w

	go func() {
		if err := w.Start(ctx, s.root); err != nil && ctx.Err() == nil {
			slog.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()
	go s.watchLoop(ctx)
	return nil
}

func (s *Server) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case batch, ok := <-s.watch.Events():
			if !ok {
				return
			}
			s.applyBatch(ctx, batch)
		case err, ok := <-s.watch.Errors():
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (s *Server) applyBatch(ctx context.Context, batch []watcher.FileEvent) {
	changed := false
	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		switch ev.Operation {
		case watcher.OpCreate, watcher.OpModify:
			if err := s.processFile(ctx, ev.Path); err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					slog.Warn("sync: upsert failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				}
				continue
			}
			changed = true
		case watcher.OpDelete:
			if err := s.removeFile(ctx, ev.Path); err != nil {
				slog.Warn("sync: delete failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			changed = true
		case watcher.OpRename:
			if ev.OldPath != "" {
				_ = s.removeFile(ctx, ev.OldPath)
			}
			if err := s.processFile(ctx, ev.Path); err != nil {
				slog.Warn("sync: rename failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			changed = true
		case watcher.OpGitignoreChange, watcher.OpConfigChange:
			if s.reconcileIgnoreRules(ctx) {
				changed = true
			}
		}
	}

	if changed {
		if err := s.manifest.Save(); err != nil {
			slog.Warn("sync: saving manifest", slog.String("error", err.Error()))
		}
	}
}

// reconcileIgnoreRules re-syncs the index against the project's current
// ignore rules after a .gitignore or config change. Patterns newly added
// since the last load are checked directly against every manifest path to
// drop the files they now hide; if any pattern was removed, a walk picks up
// files that are no longer hidden. Returns whether any record changed, so
// the caller knows whether the manifest needs saving.
func (s *Server) reconcileIgnoreRules(ctx context.Context) bool {
	content, err := os.ReadFile(filepath.Join(s.root, ".gitignore"))
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("reconcile: reading .gitignore", slog.String("error", err.Error()))
		return false
	}

	s.gitignoreMu.Lock()
	added, removed := gitignore.DiffPatterns(s.lastGitignore, string(content))
	s.lastGitignore = string(content)
	s.gitignoreMu.Unlock()

	changed := false

	if len(added) > 0 {
		for _, p := range s.manifest.Paths() {
			if !gitignore.MatchesAnyPattern(p, added) {
				continue
			}
			if err := s.removeFile(ctx, p); err != nil {
				slog.Warn("reconcile: removing newly-ignored file", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			changed = true
		}
	}

	if len(removed) == 0 {
		return changed
	}

	ignore := s.ignoreMatcher()
	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := s.manifest.Get(rel); ok {
			return nil
		}
		if err := s.processFile(ctx, rel); err != nil {
			slog.Warn("reconcile: indexing newly-unignored file", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		changed = true
		return nil
	})
	if walkErr != nil {
		slog.Warn("reconcile: walk failed", slog.String("error", walkErr.Error()))
	}
	return changed
}
