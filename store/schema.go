package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension for the active embedder.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Embedded chunks: the persistence unit for a workspace/object's indexed content.
CREATE TABLE IF NOT EXISTS embedded_chunks (
    id INTEGER PRIMARY KEY,
    fragment_id TEXT NOT NULL,
    workspace_id TEXT NOT NULL,
    object_id TEXT NOT NULL,
    content_type INTEGER NOT NULL,
    content TEXT,
    metadata JSON,
    fragment_index INTEGER NOT NULL,
    embedder_type INTEGER NOT NULL,
    dimension INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(workspace_id, object_id, fragment_id)
);

CREATE INDEX IF NOT EXISTS idx_embedded_chunks_object ON embedded_chunks(workspace_id, object_id);
CREATE INDEX IF NOT EXISTS idx_embedded_chunks_dimension ON embedded_chunks(dimension);

-- Vector index via sqlite-vec. Rows are linked to embedded_chunks.id.
CREATE VIRTUAL TABLE IF NOT EXISTS vec_embedded_chunks USING vec0(
    id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Full-text search via FTS5, used by the hybrid-search enrichment.
CREATE VIRTUAL TABLE IF NOT EXISTS embedded_chunks_fts USING fts5(
    content,
    content='embedded_chunks',
    content_rowid='id',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS embedded_chunks_ai AFTER INSERT ON embedded_chunks BEGIN
    INSERT INTO embedded_chunks_fts(rowid, content) VALUES (new.id, new.content);
END;
CREATE TRIGGER IF NOT EXISTS embedded_chunks_ad AFTER DELETE ON embedded_chunks BEGIN
    INSERT INTO embedded_chunks_fts(embedded_chunks_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
CREATE TRIGGER IF NOT EXISTS embedded_chunks_au AFTER UPDATE ON embedded_chunks BEGIN
    INSERT INTO embedded_chunks_fts(embedded_chunks_fts, rowid, content) VALUES ('delete', old.id, old.content);
    INSERT INTO embedded_chunks_fts(rowid, content) VALUES (new.id, new.content);
END;

-- Source object registry: one row per (workspace_id, object_id), used for
-- idempotence checks (byte-identical content re-indexing) and dimension
-- change detection.
CREATE TABLE IF NOT EXISTS objects (
    workspace_id TEXT NOT NULL,
    object_id TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    last_dimension INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (workspace_id, object_id)
);

-- Chat-local-file metadata, see chatfile package.
CREATE TABLE IF NOT EXISTS chat_local_file (
    file_id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_content TEXT
);

CREATE INDEX IF NOT EXISTS idx_chat_local_file_chat ON chat_local_file(chat_id);
`, embeddingDim)
}
