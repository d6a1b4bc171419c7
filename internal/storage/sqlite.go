package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/medrag/consulta/internal/models"
	"github.com/medrag/consulta/internal/vector"
)

// SQLiteStorage implements Storage using SQLite. Embedding vectors are stored
// as little-endian float32 blobs.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_key TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_type TEXT NOT NULL,
		day INTEGER,
		text TEXT NOT NULL,
		source_hint TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_type_day ON chunks(chunk_type, day);

	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_key TEXT PRIMARY KEY,
		dim INTEGER NOT NULL,
		vec BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PutChunk inserts or replaces a chunk.
func (s *SQLiteStorage) PutChunk(ctx context.Context, docID string, chunk *models.Chunk) error {
	var day sql.NullInt64
	if chunk.Day != nil {
		day = sql.NullInt64{Int64: int64(*chunk.Day), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks (chunk_key, doc_id, chunk_type, day, text, source_hint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.ChunkKey, docID, string(chunk.ChunkType), day, chunk.Text, chunk.SourceHint, time.Now(),
	)
	return err
}

// GetChunk returns a chunk by key.
func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkKey string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chunk_key, chunk_type, day, text, source_hint
		 FROM chunks WHERE chunk_key = ?`, chunkKey,
	)
	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %s", chunkKey)
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunksByKeys returns the chunks for the given keys ordered by insertion
// time. Unknown keys are skipped.
func (s *SQLiteStorage) GetChunksByKeys(ctx context.Context, chunkKeys []string) ([]*models.Chunk, error) {
	if len(chunkKeys) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(chunkKeys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(chunkKeys))
	for i, k := range chunkKeys {
		args[i] = k
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_key, chunk_type, day, text, source_hint
		 FROM chunks WHERE chunk_key IN (`+placeholders+`) ORDER BY rowid`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ListChunks returns every chunk ordered by insertion time.
func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_key, chunk_type, day, text, source_hint
		 FROM chunks ORDER BY rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// BatchPutChunks inserts or replaces multiple chunks in a transaction.
func (s *SQLiteStorage) BatchPutChunks(ctx context.Context, docID string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (chunk_key, doc_id, chunk_type, day, text, source_hint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		var day sql.NullInt64
		if chunk.Day != nil {
			day = sql.NullInt64{Int64: int64(*chunk.Day), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, chunk.ChunkKey, docID, string(chunk.ChunkType), day, chunk.Text, chunk.SourceHint, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClearChunks removes every chunk.
func (s *SQLiteStorage) ClearChunks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

// PutEmbedding inserts or replaces an embedding.
func (s *SQLiteStorage) PutEmbedding(ctx context.Context, emb *models.ChunkEmbedding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (chunk_key, dim, vec, created_at)
		 VALUES (?, ?, ?, ?)`,
		emb.ChunkKey, emb.Dim, vector.Float32sToBytes(emb.Vec), time.Now(),
	)
	return err
}

// ListEmbeddings returns every embedding ordered by insertion time. The order
// matters: it is the insertion order the vector index is rebuilt with.
func (s *SQLiteStorage) ListEmbeddings(ctx context.Context) ([]*models.ChunkEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_key, dim, vec FROM embeddings ORDER BY rowid`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var embs []*models.ChunkEmbedding
	for rows.Next() {
		var emb models.ChunkEmbedding
		var blob []byte
		if err := rows.Scan(&emb.ChunkKey, &emb.Dim, &blob); err != nil {
			return nil, err
		}
		vec, err := vector.BytesToFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt embedding for %s: %w", emb.ChunkKey, err)
		}
		emb.Vec = vec
		embs = append(embs, &emb)
	}
	return embs, rows.Err()
}

// ClearEmbeddings removes every embedding.
func (s *SQLiteStorage) ClearEmbeddings(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`)
	return err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountEmbeddings returns the total number of embeddings.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*models.Chunk, error) {
	var chunk models.Chunk
	var chunkType string
	var day sql.NullInt64
	if err := row.Scan(&chunk.ChunkKey, &chunkType, &day, &chunk.Text, &chunk.SourceHint); err != nil {
		return nil, err
	}
	chunk.ChunkType = models.ChunkType(chunkType)
	if day.Valid {
		d := int(day.Int64)
		chunk.Day = &d
	}
	return &chunk, nil
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
