package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/brunobiangulo/goreason"
	"github.com/brunobiangulo/goreason/llm"
)

// MemoryStore is a second RetrieverStore implementation backed by an
// in-memory chromem-go collection (SPEC_FULL.md supplement): it holds
// ephemeral, session-scoped documents — chat-local-file previews that have
// not yet gone through the §4.7 scheduler — so the §4.10 fan-out has a
// genuine second store to merge weights across.
type MemoryStore struct {
	name     string
	weight   int
	db       *chromem.DB
	embedder llm.Embedder

	mu   sync.Mutex
	cols map[string]*chromem.Collection
}

// NewMemoryStore builds an empty, named, weighted in-memory RetrieverStore.
func NewMemoryStore(name string, weight int, embedder llm.Embedder) *MemoryStore {
	return &MemoryStore{
		name:     name,
		weight:   weight,
		db:       chromem.NewDB(),
		embedder: embedder,
		cols:     make(map[string]*chromem.Collection),
	}
}

func (m *MemoryStore) RetrieverName() string { return m.name }
func (m *MemoryStore) Weight() int           { return m.weight }

func (m *MemoryStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := m.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("memory store: embedder returned no vector")
		}
		return vectors[0], nil
	}
}

func (m *MemoryStore) collection(workspaceID string) (*chromem.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if col, ok := m.cols[workspaceID]; ok {
		return col, nil
	}
	col, err := m.db.CreateCollection(workspaceID, nil, m.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("creating in-memory collection: %w", err)
	}
	m.cols[workspaceID] = col
	return col, nil
}

// Put registers preview documents for workspaceID, keyed by objectID
// (a chat-local-file id ahead of scheduler indexing).
func (m *MemoryStore) Put(ctx context.Context, workspaceID, objectID, content string, metadata map[string]string) error {
	col, err := m.collection(workspaceID)
	if err != nil {
		return err
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["object_id"] = objectID
	doc := chromem.Document{ID: objectID, Content: content, Metadata: metadata}
	return col.AddDocuments(ctx, []chromem.Document{doc}, 1)
}

// ReadDocuments implements RetrieverStore by querying the workspace's
// in-memory collection, restricting to ragIDs when given.
func (m *MemoryStore) ReadDocuments(ctx context.Context, workspaceID, chatID, query string, limit int, ragIDs []string, scoreThreshold float64) ([]goreason.RetrievalDocument, error) {
	m.mu.Lock()
	col, ok := m.cols[workspaceID]
	m.mu.Unlock()
	if !ok || col.Count() == 0 || query == "" {
		return nil, nil
	}

	k := limit
	if k > col.Count() {
		k = col.Count()
	}
	if k <= 0 {
		return nil, nil
	}

	allowed := make(map[string]bool, len(ragIDs))
	for _, id := range ragIDs {
		allowed[id] = true
	}

	// ragIDs filtering is applied post-query since chromem-go's where-document
	// filter operates on content substrings, not arbitrary id sets.
	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("in-memory query: %w", err)
	}

	out := make([]goreason.RetrievalDocument, 0, len(results))
	for _, r := range results {
		if len(allowed) > 0 && !allowed[r.ID] {
			continue
		}
		if r.Similarity < float32(scoreThreshold) {
			continue
		}
		meta, _ := json.Marshal(r.Metadata)
		out = append(out, goreason.RetrievalDocument{
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: meta,
			ObjectID: r.ID,
		})
	}
	return out, nil
}
