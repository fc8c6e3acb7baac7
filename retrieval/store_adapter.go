package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brunobiangulo/goreason"
	"github.com/brunobiangulo/goreason/llm"
	"github.com/brunobiangulo/goreason/store"
)

// SqliteStore adapts a *store.Store into a RetrieverStore, embedding the
// query string through the configured embedder before delegating to the
// store's own vector+FTS fusion (spec §4.6: "the store is responsible for
// embedding the query if it is not already a vector").
type SqliteStore struct {
	name     string
	weight   int
	store    *store.Store
	embedder llm.Embedder
}

// NewSqliteStore wraps db as a named, weighted RetrieverStore.
func NewSqliteStore(name string, weight int, db *store.Store, embedder llm.Embedder) *SqliteStore {
	return &SqliteStore{name: name, weight: weight, store: db, embedder: embedder}
}

func (s *SqliteStore) RetrieverName() string { return s.name }
func (s *SqliteStore) Weight() int           { return s.weight }

func (s *SqliteStore) ReadDocuments(ctx context.Context, workspaceID, chatID, query string, limit int, ragIDs []string, scoreThreshold float64) ([]goreason.RetrievalDocument, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	var queryEmbedding []float32
	if len(vectors) > 0 {
		queryEmbedding = vectors[0]
	}

	docs, err := s.store.ReadDocuments(ctx, workspaceID, queryEmbedding, query, limit, ragIDs, scoreThreshold)
	if err != nil {
		return nil, err
	}

	out := make([]goreason.RetrievalDocument, len(docs))
	for i, d := range docs {
		meta := d.Metadata
		if meta == "" {
			meta = "null"
		}
		out[i] = goreason.RetrievalDocument{
			Content:  d.Content,
			Score:    d.Score,
			Metadata: json.RawMessage(meta),
			ObjectID: d.ObjectID,
		}
	}
	return out, nil
}
