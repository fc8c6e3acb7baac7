package goreason

import (
	"context"

	"github.com/brunobiangulo/goreason/chunker"
	"github.com/brunobiangulo/goreason/llm"
)

// DocumentIndexer turns a Document object's paragraphs into embedded chunks
// (spec §4.5): split → batch-embed only the non-empty chunks → write
// vectors back to their originating indices.
type DocumentIndexer struct {
	Splitter *chunker.Splitter
}

// NewDocumentIndexer builds an indexer using the default chunk_size/overlap
// policy for Document-type content (spec §4.3).
func NewDocumentIndexer() *DocumentIndexer {
	return &DocumentIndexer{Splitter: chunker.NewSplitter(chunker.DefaultChunkSize, chunker.DefaultOverlap)}
}

// Index splits paragraphs into EmbeddedChunks tagged RAGSource=AppFlowyDocument
// and fills in their embedding vectors via embedder. Empty input yields
// empty output without calling embedder at all.
func (idx *DocumentIndexer) Index(ctx context.Context, objectID ObjectID, paragraphs []string, model EmbeddingModel, embedder llm.Embedder) ([]EmbeddedChunk, error) {
	chunks := idx.Splitter.Split(objectID, paragraphs, model, DocumentSource{})
	if len(chunks) == 0 {
		return nil, nil
	}

	var texts []string
	var targetIdx []int
	for i, c := range chunks {
		if c.Content != nil && *c.Content != "" {
			texts = append(texts, *c.Content)
			targetIdx = append(targetIdx, i)
		}
	}
	if len(texts) == 0 {
		return chunks, nil
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, Wrap(Internal, "embedding document chunks", err)
	}
	if len(vectors) != len(texts) {
		return nil, New(Internal, "embedder returned a different vector count than requested")
	}

	for i, vecIdx := range targetIdx {
		chunks[vecIdx].Embeddings = vectors[i]
		chunks[vecIdx].EmbedderType = int32(model.Dimension)
	}
	return chunks, nil
}
