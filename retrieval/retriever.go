// Package retrieval implements the multi-source weighted retriever (spec
// §4.10): fan-out of one query across every registered RetrieverStore,
// weight-then-score ranking, and chat-file-aware rag_id expansion.
package retrieval

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/goreason"
)

// DefaultMaxNumDocs and DefaultScoreThreshold are the retriever's spec §4.10
// defaults.
const (
	DefaultMaxNumDocs      = 5
	DefaultScoreThreshold  = 0.1
	identifierWidenedLimit = 2
)

// RetrieverStore is the external-collaborator contract a vector store
// implements to participate in fan-out (spec §4.6): it embeds the query
// itself if needed, and reports a name plus an integer weight used for
// cross-store ranking.
type RetrieverStore interface {
	RetrieverName() string
	Weight() int
	ReadDocuments(ctx context.Context, workspaceID, chatID, query string, limit int, ragIDs []string, scoreThreshold float64) ([]goreason.RetrievalDocument, error)
}

// ChatFileLister is the subset of chatfile.Store the retriever needs to
// expand rag_ids with chat-attached file ids (spec §4.10 get_rag_ids).
type ChatFileLister interface {
	FileIDs(ctx context.Context, chatID string) ([]string, error)
}

// Retriever fans a query out across every registered store and returns a
// single ranked document list (spec §4.10).
type Retriever struct {
	WorkspaceID    string
	ChatID         string
	MaxNumDocs     int
	ScoreThreshold float64

	stores    []RetrieverStore
	chatFiles ChatFileLister

	mu     sync.RWMutex
	ragIDs []string
}

// NewRetriever builds a Retriever over the given ordered stores, applying
// spec §4.10's defaults for any zero-valued field.
func NewRetriever(workspaceID, chatID string, stores []RetrieverStore, chatFiles ChatFileLister, ragIDs []string) *Retriever {
	r := &Retriever{
		WorkspaceID:    workspaceID,
		ChatID:         chatID,
		MaxNumDocs:     DefaultMaxNumDocs,
		ScoreThreshold: DefaultScoreThreshold,
		stores:         stores,
		chatFiles:      chatFiles,
		ragIDs:         append([]string(nil), ragIDs...),
	}
	return r
}

// GetRagIDs returns the base rag_ids plus, when chat-local files exist for
// ChatID, their file ids and the chat id itself appended (spec §4.10).
func (r *Retriever) GetRagIDs(ctx context.Context) []string {
	r.mu.RLock()
	base := append([]string(nil), r.ragIDs...)
	r.mu.RUnlock()

	if r.chatFiles == nil || r.ChatID == "" {
		return base
	}
	fileIDs, err := r.chatFiles.FileIDs(ctx, r.ChatID)
	if err != nil {
		slog.Warn("retriever: listing chat file ids failed", "chat_id", r.ChatID, "error", err)
		return base
	}
	if len(fileIDs) == 0 {
		return base
	}
	return append(append(base, fileIDs...), r.ChatID)
}

// SetRagIDs replaces the base rag_ids in place.
func (r *Retriever) SetRagIDs(newIDs []string) {
	r.mu.Lock()
	r.ragIDs = append([]string(nil), newIDs...)
	r.mu.Unlock()
}

// scoredDoc carries a document plus the weight of the store that produced
// it and its original fan-out arrival order, so the final sort can break
// ties by stable input order (spec §5 ordering guarantee).
type scoredDoc struct {
	doc    goreason.RetrievalDocument
	weight int
	order  int
}

// RetrieveDocuments runs the spec §4.10 algorithm: build effective rag_ids,
// fan out to every store in parallel (per-store errors are logged, never
// fatal), tag each result with its store's weight, sort by (weight ASC,
// score DESC), and return the first MaxNumDocs.
func (r *Retriever) RetrieveDocuments(ctx context.Context, query string) ([]goreason.RetrievalDocument, error) {
	ragIDs := r.GetRagIDs(ctx)

	limit := r.MaxNumDocs
	if detectIdentifiers(query) {
		limit *= identifierWidenedLimit
		slog.Debug("retriever: structured identifier detected, widening per-store fan-out limit", "query_len", len(query), "limit", limit)
	}

	type fanOutResult struct {
		storeIdx int
		docs     []goreason.RetrievalDocument
	}
	results := make([]fanOutResult, len(r.stores))

	g, gctx := errgroup.WithContext(ctx)
	for i, st := range r.stores {
		i, st := i, st
		g.Go(func() error {
			docs, err := st.ReadDocuments(gctx, r.WorkspaceID, r.ChatID, query, limit, ragIDs, r.ScoreThreshold)
			if err != nil {
				// Per-store failures are absorbed, never fatal (spec §4.10 step 2).
				slog.Warn("retriever: store fan-out failed", "store", st.RetrieverName(), "error", err)
				return nil
			}
			results[i] = fanOutResult{storeIdx: i, docs: docs}
			return nil
		})
	}
	// errgroup.Go never returns a non-nil error above; Wait only propagates
	// ctx cancellation, which callers use to bound the whole fan-out.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var scored []scoredDoc
	order := 0
	for i, res := range results {
		weight := r.stores[i].Weight()
		for _, d := range res.docs {
			scored = append(scored, scoredDoc{doc: d, weight: weight, order: order})
			order++
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].weight != scored[b].weight {
			return scored[a].weight < scored[b].weight
		}
		if scored[a].doc.Score != scored[b].doc.Score {
			return scored[a].doc.Score > scored[b].doc.Score
		}
		return scored[a].order < scored[b].order
	})

	if len(scored) > r.MaxNumDocs {
		scored = scored[:r.MaxNumDocs]
	}

	out := make([]goreason.RetrievalDocument, len(scored))
	for i, s := range scored {
		out[i] = s.doc
	}
	return out, nil
}

// identifierPatterns match structured identifiers (part numbers, standards,
// IPs, model/revision codes, voltage specs) a query might contain. Detecting
// one widens per-store fan-out before the mandatory weight/score sort runs;
// it never changes the sort algorithm itself (SPEC_FULL.md supplemented
// feature, grounded on the teacher's identifier-aware query routing).
var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:PN[:\s]*|P/N[:\s]*)?[A-Z]{1,3}[-]?\d{3,6}`),
	regexp.MustCompile(`(?i)(?:ISO|EN|IEC|MIL-STD|ASTM|IEEE|NIST|AS|BS)\s*[-]?\s*\d[\w.-]*`),
	regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`),
	regexp.MustCompile(`\b[A-Z]{2,4}-[A-Z]{1,4}\b`),
	regexp.MustCompile(`(?i)Rev\.?\s*[A-Z0-9]{1,5}`),
	regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*[Vv](?:AC|DC|ac|dc)\b`),
}

func detectIdentifiers(query string) bool {
	for _, p := range identifierPatterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}
