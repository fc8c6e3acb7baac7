package llm

import (
	"context"
	"fmt"
)

// Embedder is the embed/model/dimension interface the scheduler drives to
// turn chunk content into vectors (spec §4.4). It is deliberately a plain
// interface over Provider rather than a type in the root package, so this
// package stays free of an import on it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimension() int
}

// providerEmbedder adapts a Provider's two-method Embed call into the
// three-method Embedder surface, validating that every returned vector
// matches the configured dimension (spec §4.4: a count or dimension
// mismatch is the caller's cue to report an Internal error).
type providerEmbedder struct {
	provider  Provider
	modelName string
	dimension int
}

// NewEmbedder wraps a Provider as an Embedder for the given model name and
// output dimension.
func NewEmbedder(p Provider, modelName string, dimension int) Embedder {
	return &providerEmbedder{provider: p, modelName: modelName, dimension: dimension}
}

func (e *providerEmbedder) ModelName() string { return e.modelName }
func (e *providerEmbedder) Dimension() int    { return e.dimension }

func (e *providerEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed: provider returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embed: vector %d has dimension %d, want %d", i, len(v), e.dimension)
		}
	}
	return vectors, nil
}
