// Package store implements the on-disk vector store contract (spec §4.6):
// a SQLite-backed, per-workspace/per-object-namespaced chunk store with
// sqlite-vec kNN search and an FTS5 hybrid-search enrichment, plus the
// chat-local-file metadata table (§4.9).
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Chunk is the on-disk representation of an EmbeddedChunk (spec §3).
type Chunk struct {
	ID            int64
	FragmentID    string
	WorkspaceID   string
	ObjectID      string
	ContentType   int32
	Content       string
	Metadata      string
	FragmentIndex int32
	EmbedderType  int32
	Dimension     int
	Embedding     []float32
}

// Document is a retrieval result: content plus its provenance and score
// (spec §3 "Retrieval document").
type Document struct {
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Metadata string  `json:"metadata,omitempty"`
	ObjectID string  `json:"object_id"`
}

// Store wraps the SQLite database for all goreason persistence: embedded
// chunks and chat-local files.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including sqlite-vec and FTS5 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) EmbeddingDim() int { return s.embeddingDim }

// --- object registry: idempotence + dimension-consistency tracking ---

// ObjectHash returns the last recorded content hash for (workspaceID,
// objectID), and false if the object has never been indexed.
func (s *Store) ObjectHash(ctx context.Context, workspaceID, objectID string) (string, int, bool, error) {
	var hash string
	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, last_dimension FROM objects WHERE workspace_id = ? AND object_id = ?`,
		workspaceID, objectID).Scan(&hash, &dim)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return hash, dim, true, nil
}

// SetObjectHash records the content hash and dimension most recently used
// to index (workspaceID, objectID).
func (s *Store) SetObjectHash(ctx context.Context, workspaceID, objectID, hash string, dim int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (workspace_id, object_id, content_hash, last_dimension, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(workspace_id, object_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			last_dimension = excluded.last_dimension,
			updated_at = CURRENT_TIMESTAMP
	`, workspaceID, objectID, hash, dim)
	return err
}

// --- vector store contract (spec §4.6, §6) ---

// InsertChunks bulk-inserts chunks and their embeddings for one
// (workspaceID, objectID). Callers are responsible for calling
// DeleteByObject first when full replacement is required (spec §4.7
// persistence atomicity is the scheduler's responsibility, not the store's).
func (s *Store) InsertChunks(ctx context.Context, workspaceID string, chunks []Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertChunksTx(ctx, tx, workspaceID, chunks)
	})
}

func insertChunksTx(ctx context.Context, tx *sql.Tx, workspaceID string, chunks []Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embedded_chunks
			(fragment_id, workspace_id, object_id, content_type, content, metadata, fragment_index, embedder_type, dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, object_id, fragment_id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			fragment_index = excluded.fragment_index,
			embedder_type = excluded.embedder_type,
			dimension = excluded.dimension
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	vecStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO vec_embedded_chunks (id, embedding) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for _, c := range chunks {
		res, err := stmt.ExecContext(ctx, c.FragmentID, workspaceID, c.ObjectID,
			c.ContentType, c.Content, c.Metadata, c.FragmentIndex, c.EmbedderType, c.Dimension)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.FragmentID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if id == 0 {
			if err := tx.QueryRowContext(ctx,
				`SELECT id FROM embedded_chunks WHERE workspace_id = ? AND object_id = ? AND fragment_id = ?`,
				workspaceID, c.ObjectID, c.FragmentID).Scan(&id); err != nil {
				return err
			}
		}
		if len(c.Embedding) > 0 {
			if _, err := vecStmt.ExecContext(ctx, id, serializeFloat32(c.Embedding)); err != nil {
				return fmt.Errorf("inserting embedding for %s: %w", c.FragmentID, err)
			}
		}
	}
	return nil
}

// DeleteByObject removes every chunk (and its embedding) for (workspaceID,
// objectID). Used both for explicit deletion and for the scheduler's
// full-replace / dimension-change purge.
func (s *Store) DeleteByObject(ctx context.Context, workspaceID, objectID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteByObjectTx(ctx, tx, workspaceID, objectID)
	})
}

func deleteByObjectTx(ctx context.Context, tx *sql.Tx, workspaceID, objectID string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM embedded_chunks WHERE workspace_id = ? AND object_id = ?`, workspaceID, objectID)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embedded_chunks WHERE id = ?`, id); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM embedded_chunks WHERE workspace_id = ? AND object_id = ?`, workspaceID, objectID)
	return err
}

// ReplaceChunks atomically purges every prior chunk for (workspaceID,
// objectID) and writes the new set, recording contentHash/dim on the
// objects registry in the same transaction — the persistence-atomicity and
// dimension-consistency guarantees the scheduler depends on (spec §4.7).
func (s *Store) ReplaceChunks(ctx context.Context, workspaceID, objectID string, chunks []Chunk, contentHash string, dim int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteByObjectTx(ctx, tx, workspaceID, objectID); err != nil {
			return err
		}
		if err := insertChunksTx(ctx, tx, workspaceID, chunks); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO objects (workspace_id, object_id, content_hash, last_dimension, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(workspace_id, object_id) DO UPDATE SET
				content_hash = excluded.content_hash,
				last_dimension = excluded.last_dimension,
				updated_at = CURRENT_TIMESTAMP
		`, workspaceID, objectID, contentHash, dim)
		return err
	})
}

// ListDimensions reports every distinct embedding dimension present in the
// store (spec §6 vector store interface).
func (s *Store) ListDimensions(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dimension FROM embedded_chunks WHERE dimension > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dims []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

// ReadDocuments performs the store-side half of a retrieval call (spec
// §4.6): vector kNN search, fused with an FTS5 pass over the same rag_id
// filter set (the hybrid-search enrichment, see retrieval/rrf.go),
// restricted to workspaceID and, when non-empty, to rows whose object_id is
// in ragIDs, and filtered by scoreThreshold.
func (s *Store) ReadDocuments(ctx context.Context, workspaceID string, queryEmbedding []float32, query string, limit int, ragIDs []string, scoreThreshold float64) ([]Document, error) {
	vecDocs, err := s.vectorSearch(ctx, workspaceID, queryEmbedding, ragIDs, limit*2)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	var ftsDocs []Document
	if query != "" {
		ftsDocs, err = s.ftsSearch(ctx, workspaceID, query, ragIDs, limit*2)
		if err != nil {
			ftsDocs = nil // FTS is an enrichment; absorb its failure per §7 propagation policy
		}
	}

	merged := fuseRRF(vecDocs, ftsDocs, rrfK)
	var out []Document
	for _, d := range merged {
		if d.Score < scoreThreshold {
			continue
		}
		out = append(out, d)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) vectorSearch(ctx context.Context, workspaceID string, queryEmbedding []float32, ragIDs []string, k int) ([]Document, error) {
	if len(queryEmbedding) == 0 || k <= 0 {
		return nil, nil
	}
	args := []interface{}{serializeFloat32(queryEmbedding), k}
	q := `
		SELECT v.distance, c.content, c.metadata, c.object_id
		FROM vec_embedded_chunks v
		JOIN embedded_chunks c ON c.id = v.id
		WHERE v.embedding MATCH ? AND k = ? AND c.workspace_id = ?
	`
	args = append(args, workspaceID)
	if len(ragIDs) > 0 {
		q += fmt.Sprintf(" AND c.object_id IN (%s)", placeholders(len(ragIDs)))
		for _, id := range ragIDs {
			args = append(args, id)
		}
	}
	q += " ORDER BY v.distance"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var distance float64
		var metadata sql.NullString
		if err := rows.Scan(&distance, &d.Content, &metadata, &d.ObjectID); err != nil {
			return nil, err
		}
		d.Metadata = metadata.String
		d.Score = 1.0 - distance
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) ftsSearch(ctx context.Context, workspaceID, query string, ragIDs []string, limit int) ([]Document, error) {
	args := []interface{}{query, workspaceID}
	q := `
		SELECT f.rank, c.content, c.metadata, c.object_id
		FROM embedded_chunks_fts f
		JOIN embedded_chunks c ON c.id = f.rowid
		WHERE embedded_chunks_fts MATCH ? AND c.workspace_id = ?
	`
	if len(ragIDs) > 0 {
		q += fmt.Sprintf(" AND c.object_id IN (%s)", placeholders(len(ragIDs)))
		for _, id := range ragIDs {
			args = append(args, id)
		}
	}
	q += " ORDER BY f.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var rank float64
		var metadata sql.NullString
		if err := rows.Scan(&rank, &d.Content, &metadata, &d.ObjectID); err != nil {
			return nil, err
		}
		d.Metadata = metadata.String
		d.Score = -rank
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// --- chat-local-file table (spec §4.9, §6) ---

// UpsertChatLocalFile inserts or replaces a chat_local_file row.
func (s *Store) UpsertChatLocalFile(ctx context.Context, fileID, chatID, filePath, fileContent string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_local_file (file_id, chat_id, file_path, file_content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			file_path = excluded.file_path,
			file_content = excluded.file_content
	`, fileID, chatID, filePath, fileContent)
	return err
}

// UpsertChatLocalFiles upserts a batch of rows inside a single immediate
// transaction (spec §5 shared-resource policy).
func (s *Store) UpsertChatLocalFiles(ctx context.Context, rows []ChatLocalFileRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chat_local_file (file_id, chat_id, file_path, file_content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			file_path = excluded.file_path,
			file_content = excluded.file_content
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.FileID, r.ChatID, r.FilePath, r.FileContent); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ChatLocalFileRow is one row of the chat_local_file table.
type ChatLocalFileRow struct {
	FileID      string
	ChatID      string
	FilePath    string
	FileContent string
}

// ChatFileIDs returns every file_id recorded for chatID.
func (s *Store) ChatFileIDs(ctx context.Context, chatID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_id FROM chat_local_file WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteAllChatFiles removes every chat_local_file row for chatID, returning
// the number of rows deleted.
func (s *Store) DeleteAllChatFiles(ctx context.Context, chatID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_local_file WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	s := "?"
	for i := 1; i < n; i++ {
		s += ", ?"
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
