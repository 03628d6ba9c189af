package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// Table persists VectorRecords for one repository. It is the single
// on-disk source of truth; the HNSW graph in hnsw.go is rebuilt from it at
// load and is never itself persisted.
type Table struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// OpenTable opens (creating if necessary) the VectorRecord table at path.
// An empty path opens an in-memory table, used by tests.
func OpenTable(path string) (*Table, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vector table: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	t := &Table{db: db, path: path}
	if err := t.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

func (t *Table) migrate() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS vectors (
			id            TEXT PRIMARY KEY,
			path          TEXT NOT NULL,
			hash          TEXT NOT NULL,
			content       TEXT NOT NULL,
			start_line    INTEGER NOT NULL,
			end_line      INTEGER NOT NULL,
			chunk_index   INTEGER NOT NULL,
			is_anchor     INTEGER NOT NULL,
			chunk_type    TEXT NOT NULL,
			context_prev  TEXT NOT NULL DEFAULT '',
			context_next  TEXT NOT NULL DEFAULT '',
			dense         BLOB NOT NULL,
			colbert       BLOB NOT NULL,
			colbert_scale REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vectors_path ON vectors(path);
	`)
	if err != nil {
		return fmt.Errorf("migrate vector table: %w", err)
	}
	return nil
}

// Upsert replaces every existing record for each record's path, then
// inserts the given records. Callers pass the complete, densely-numbered
// 0..N set of records for a path so chunk_index stays contiguous.
func (t *Table) Upsert(ctx context.Context, records []*VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	paths := map[string]struct{}{}
	for _, r := range records {
		paths[r.Path] = struct{}{}
	}
	for p := range paths {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE path = ?`, p); err != nil {
			return fmt.Errorf("clear existing records for %s: %w", p, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (
			id, path, hash, content, start_line, end_line, chunk_index,
			is_anchor, chunk_type, context_prev, context_next,
			dense, colbert, colbert_scale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Path, r.Hash, r.Content, r.StartLine, r.EndLine, r.ChunkIndex,
			boolToInt(r.IsAnchor), string(r.ChunkType), r.ContextPrev, r.ContextNext,
			encodeDense(r.Dense), encodeColbert(r.Colbert), r.ColbertScale,
		)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteByPath removes every record for path, returning the removed IDs so
// callers can evict them from the ANN index too.
func (t *Table) DeleteByPath(ctx context.Context, path string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.QueryContext(ctx, `SELECT id FROM vectors WHERE path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("query ids for %s: %w", path, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if _, err := t.db.ExecContext(ctx, `DELETE FROM vectors WHERE path = ?`, path); err != nil {
		return nil, fmt.Errorf("delete records for %s: %w", path, err)
	}
	return ids, nil
}

// Empty reports whether the table has no records at all.
func (t *Table) Empty(ctx context.Context) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var count int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
		return false, fmt.Errorf("count records: %w", err)
	}
	return count == 0, nil
}

// GetByID fetches a single record.
func (t *Table) GetByID(ctx context.Context, id string) (*VectorRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row := t.db.QueryRowContext(ctx, `
		SELECT id, path, hash, content, start_line, end_line, chunk_index,
		       is_anchor, chunk_type, context_prev, context_next,
		       dense, colbert, colbert_scale
		FROM vectors WHERE id = ?
	`, id)
	return scanRecordRows(row)
}

// GetMany fetches multiple records by ID, skipping IDs that no longer
// exist (e.g. the file they belonged to was deleted after an ANN recall
// snapshot was taken).
func (t *Table) GetMany(ctx context.Context, ids []string) ([]*VectorRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, path, hash, content, start_line, end_line, chunk_index,
		       is_anchor, chunk_type, context_prev, context_next,
		       dense, colbert, colbert_scale
		FROM vectors WHERE id IN (%s)
	`, string(placeholders))

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []*VectorRecord
	for rows.Next() {
		r, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllForRebuild streams every (id, dense vector) pair, used to rebuild the
// in-memory HNSW graph at daemon startup.
func (t *Table) AllForRebuild(ctx context.Context) ([]string, [][]float32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.db.QueryContext(ctx, `SELECT id, dense FROM vectors`)
	if err != nil {
		return nil, nil, fmt.Errorf("query for rebuild: %w", err)
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, fmt.Errorf("scan for rebuild: %w", err)
		}
		ids = append(ids, id)
		vectors = append(vectors, decodeDense(blob))
	}
	return ids, vectors, rows.Err()
}

// Close releases the underlying connection.
func (t *Table) Close() error {
	return t.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecordRows(row scannable) (*VectorRecord, error) {
	var r VectorRecord
	var isAnchor int
	var chunkType string
	var denseBlob, colbertBlob []byte

	err := row.Scan(
		&r.ID, &r.Path, &r.Hash, &r.Content, &r.StartLine, &r.EndLine, &r.ChunkIndex,
		&isAnchor, &chunkType, &r.ContextPrev, &r.ContextNext,
		&denseBlob, &colbertBlob, &r.ColbertScale,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	r.IsAnchor = isAnchor != 0
	r.ChunkType = ChunkType(chunkType)
	r.Dense = decodeDense(denseBlob)
	r.Colbert = decodeColbert(colbertBlob)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeDense/decodeDense and encodeColbert/decodeColbert use a small
// fixed binary layout rather than gob or JSON: vectors are purely numeric
// and read back on every startup rebuild, so a flat float32 encoding keeps
// both size and parse cost down.

func encodeDense(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeDense(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// encodeColbert lays out a row count, then each row's length-prefixed
// float32 values.
func encodeColbert(m [][]float32) []byte {
	var buf bytes.Buffer
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(m)))
	buf.Write(header[:])
	for _, row := range m {
		binary.LittleEndian.PutUint32(header[:], uint32(len(row)))
		buf.Write(header[:])
		buf.Write(encodeDense(row))
	}
	return buf.Bytes()
}

func decodeColbert(b []byte) [][]float32 {
	if len(b) < 4 {
		return nil
	}
	rows := binary.LittleEndian.Uint32(b)
	offset := 4
	out := make([][]float32, 0, rows)
	for i := uint32(0); i < rows; i++ {
		if offset+4 > len(b) {
			break
		}
		rowLen := binary.LittleEndian.Uint32(b[offset:])
		offset += 4
		rowBytes := rowLen * 4
		if offset+int(rowBytes) > len(b) {
			break
		}
		out = append(out, decodeDense(b[offset:offset+int(rowBytes)]))
		offset += int(rowBytes)
	}
	return out
}
