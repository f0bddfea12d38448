package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorIndex = (*Store)(nil)

// DBFile is the database file name inside the index directory.
const DBFile = "index.db"

const (
	metaModel      = "model"
	metaDimensions = "dimensions"
)

// Mode selects how the index is opened.
type Mode int

const (
	// ReadWrite creates the index if needed and allows commits.
	ReadWrite Mode = iota

	// ReadOnly requires an existing index and rejects commits.
	ReadOnly
)

// Store is the SQLite-backed vector index.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Open opens the vector index in dir. In ReadOnly mode a missing database
// is domain.ErrIndexUnavailable.
func Open(dir string, mode Mode) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: index path is empty", domain.ErrConfiguration)
	}
	dbPath := filepath.Join(dir, DBFile)

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if mode == ReadOnly {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("%w: %s: %v (run `docchat ingest` first)",
				domain.ErrIndexUnavailable, dbPath, err)
		}
		dsn = dbPath + "?_pragma=query_only(1)&_pragma=busy_timeout(5000)"
	} else if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:       db,
		path:     dbPath,
		readOnly: mode == ReadOnly,
	}

	if s.readOnly {
		if err := s.check(); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Commit writes every entry in a single transaction.
func (s *Store) Commit(ctx context.Context, entries []domain.Chunk, opts driven.CommitOptions) error {
	if s.readOnly {
		return fmt.Errorf("%w: index opened read-only", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if opts.Reset {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
			return fmt.Errorf("clearing chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
			return fmt.Errorf("clearing index metadata: %w", err)
		}
	}

	if len(entries) > 0 {
		dims := len(entries[0].Embedding)
		existing, err := readDimensions(ctx, tx)
		if err != nil {
			return err
		}
		if existing != 0 && existing != dims {
			return fmt.Errorf("%w: index holds %d-dimension vectors, got %d (re-run with reset)",
				domain.ErrInvalidInput, existing, dims)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (chunk_id, artifact_id, source_url, position, start_offset, content, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if len(e.Embedding) != dims {
				return fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
					domain.ErrInvalidInput, e.ID, len(e.Embedding), dims)
			}
			if _, err := stmt.ExecContext(ctx, e.ID, e.ArtifactID, e.SourceURL, e.Position,
				e.StartOffset, e.Content, float32SliceToBytes(e.Embedding)); err != nil {
				return fmt.Errorf("inserting chunk %s: %w", e.ID, err)
			}
		}

		if err := writeMeta(ctx, tx, metaDimensions, strconv.Itoa(dims)); err != nil {
			return err
		}
		if opts.Model != "" {
			if err := writeMeta(ctx, tx, metaModel, opts.Model); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search scans every stored embedding and returns the k most similar chunks.
// Duplicate entries for the same chunk ID collapse to their best score.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return []driven.VectorHit{}, nil
	}

	dims, err := readDimensions(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	if dims != 0 && dims != len(query) {
		return nil, fmt.Errorf("%w: query has %d dimensions but the index was built with %d",
			domain.ErrIndexUnavailable, len(query), dims)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT chunk_id, embedding FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	best := make(map[string]float64)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", domain.ErrIndexUnavailable, err)
		}
		sim := cosineSimilarity(query, bytesToFloat32Slice(blob))
		if prev, ok := best[id]; !ok || sim > prev {
			best[id] = sim
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	hits := make([]driven.VectorHit, 0, len(best))
	for id, sim := range best {
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: sim})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// GetChunks returns stored chunks in the order requested.
func (s *Store) GetChunks(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return []domain.Chunk{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	//nolint:gosec // G202: placeholders are generated, values are bound.
	query := `SELECT chunk_id, artifact_id, source_url, position, start_offset, content, embedding
		FROM chunks WHERE chunk_id IN (` + placeholders + `) ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := byID[c.ID]; !seen {
			byID[c.ID] = *c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	chunks := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// Stats summarises the index.
func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats

	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT artifact_id) FROM chunks")
	if err := row.Scan(&stats.Chunks, &stats.Artifacts); err != nil {
		return stats, fmt.Errorf("%w: counting chunks: %v", domain.ErrIndexUnavailable, err)
	}

	dims, err := readDimensions(ctx, s.db)
	if err != nil {
		return stats, err
	}
	stats.Dimensions = dims

	model, err := readMeta(ctx, s.db, metaModel)
	if err != nil {
		return stats, err
	}
	stats.Model = model

	return stats, nil
}

// check verifies a read-only database has the expected schema.
func (s *Store) check() error {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrIndexUnavailable, s.path, err)
	}
	return nil
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readMeta(ctx context.Context, q queryer, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index metadata %s: %w", key, err)
	}
	return value, nil
}

func readDimensions(ctx context.Context, q queryer) (int, error) {
	value, err := readMeta(ctx, q, metaDimensions)
	if err != nil || value == "" {
		return 0, err
	}
	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: bad dimensions %q", domain.ErrIndexUnavailable, value)
	}
	return dims, nil
}

func writeMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing index metadata %s: %w", key, err)
	}
	return nil
}

func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var c domain.Chunk
	var blob []byte
	if err := rows.Scan(&c.ID, &c.ArtifactID, &c.SourceURL, &c.Position,
		&c.StartOffset, &c.Content, &blob); err != nil {
		return nil, fmt.Errorf("%w: scanning chunk: %v", domain.ErrIndexUnavailable, err)
	}
	c.Embedding = bytesToFloat32Slice(blob)
	return &c, nil
}

// cosineSimilarity returns 0 for mismatched or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
