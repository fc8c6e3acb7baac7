// Package scheduler implements the embedding scheduler (spec §4.7): a
// single long-lived consumer draining an ingestion queue of
// UnindexedCollabs, with at-most-one in-flight job per object, atomic
// per-object persistence, dimension-change purge, and bounded retry.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/brunobiangulo/goreason"
	"github.com/brunobiangulo/goreason/chunker"
	"github.com/brunobiangulo/goreason/llm"
	"github.com/brunobiangulo/goreason/store"
)

// NotifyFunc is called when an object finishes or permanently fails
// embedding, bridging to the host application's notification collaborator
// (spec §6).
type NotifyFunc func(event Event)

// Event names mirror the notification constants spec §6 names plus the
// SPEC_FULL.md supplement for completeness.
type Event struct {
	ObjectID goreason.ObjectID
	Kind     EventKind
	Err      error
}

type EventKind int

const (
	EventDidFinishIndexing EventKind = iota
	EventFailedToEmbedFile
)

// Scheduler is the spec §4.7 embedding scheduler.
type Scheduler struct {
	store    *store.Store
	embedder llm.Embedder
	model    goreason.EmbeddingModel
	notify   NotifyFunc

	maxAttempts int
	baseDelay   time.Duration

	splitter *chunker.Splitter

	mu      sync.Mutex
	pending map[goreason.ObjectID]goreason.UnindexedCollab
	order   []goreason.ObjectID
	inOrder map[goreason.ObjectID]bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a Scheduler and starts its consumer goroutine.
func New(st *store.Store, embedder llm.Embedder, model goreason.EmbeddingModel, maxAttempts int, baseDelay time.Duration, notify NotifyFunc) *Scheduler {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	s := &Scheduler{
		store:       st,
		embedder:    embedder,
		model:       model,
		notify:      notify,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		splitter:    chunker.NewSplitter(chunker.DefaultChunkSize, chunker.DefaultOverlap),
		pending:     make(map[goreason.ObjectID]goreason.UnindexedCollab),
		inOrder:     make(map[goreason.ObjectID]bool),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Enqueue submits an object for (re-)embedding. A pending submission for
// the same object_id is superseded in place — only the newest content for
// that object is ever embedded (spec §4.7 at-most-one-per-object).
func (s *Scheduler) Enqueue(collab goreason.UnindexedCollab) {
	var snapshot goreason.UnindexedCollab
	if err := deepcopy.Copy(&snapshot, &collab); err != nil {
		snapshot = collab
	}

	s.mu.Lock()
	s.pending[collab.ObjectID] = snapshot
	if !s.inOrder[collab.ObjectID] {
		s.order = append(s.order, collab.ObjectID)
		s.inOrder[collab.ObjectID] = true
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Shutdown finishes the in-flight object, discards everything still
// pending, and returns once the consumer goroutine has exited (spec §4.7
// backpressure/cancellation).
func (s *Scheduler) Shutdown(ctx context.Context) {
	close(s.done)
	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		objectID, collab, ok := s.popNext()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		s.process(objectID, collab)

		select {
		case <-s.done:
			return
		default:
		}
	}
}

func (s *Scheduler) popNext() (goreason.ObjectID, goreason.UnindexedCollab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return "", goreason.UnindexedCollab{}, false
	}
	objectID := s.order[0]
	s.order = s.order[1:]
	delete(s.inOrder, objectID)
	collab := s.pending[objectID]
	delete(s.pending, objectID)
	return objectID, collab, true
}

func (s *Scheduler) process(objectID goreason.ObjectID, collab goreason.UnindexedCollab) {
	if collab.IsEmpty() {
		return
	}

	var paragraphs []string
	switch d := collab.Data.(type) {
	case goreason.ParagraphsData:
		paragraphs = []string(d)
	default:
		paragraphs = []string{collab.Data.IntoString()}
	}

	metadata := chunker.CanonicalMetadata(objectID, goreason.DocumentSource{}.AsStr(), collab.Metadata.Name)
	contentHash := chunker.FragmentID(collab.Data.IntoString(), metadata)

	prevHash, prevDim, known, err := s.store.ObjectHash(context.Background(), collab.WorkspaceID, objectID)
	if err == nil && known && prevHash == contentHash && prevDim == s.model.Dimension {
		return
	}

	chunks := s.splitter.Split(objectID, paragraphs, s.model, goreason.DocumentSource{})

	var storeChunks []store.Chunk
	var attemptErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-s.done:
				return
			}
		}

		storeChunks, attemptErr = s.embedChunks(context.Background(), chunks)
		if attemptErr == nil {
			break
		}
		slog.Warn("scheduler: embed attempt failed", "object_id", objectID, "attempt", attempt+1, "error", attemptErr)
	}
	if attemptErr != nil {
		slog.Error("scheduler: giving up on object after max attempts", "object_id", objectID, "attempts", s.maxAttempts)
		s.emit(Event{ObjectID: objectID, Kind: EventFailedToEmbedFile, Err: attemptErr})
		return
	}

	if err := s.store.ReplaceChunks(context.Background(), collab.WorkspaceID, objectID, storeChunks, contentHash, s.model.Dimension); err != nil {
		slog.Error("scheduler: failed to persist chunks", "object_id", objectID, "error", err)
		s.emit(Event{ObjectID: objectID, Kind: EventFailedToEmbedFile, Err: err})
		return
	}

	s.emit(Event{ObjectID: objectID, Kind: EventDidFinishIndexing})
}

// embedChunks batches every non-empty chunk's content into one embed call
// (spec §4.4/§4.7 batching: never split one object's batch across models).
func (s *Scheduler) embedChunks(ctx context.Context, chunks []goreason.EmbeddedChunk) ([]store.Chunk, error) {
	var texts []string
	var targetIdx []int
	for i, c := range chunks {
		if c.Content != nil && *c.Content != "" {
			texts = append(texts, *c.Content)
			targetIdx = append(targetIdx, i)
		}
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
	}
	for i, vecIdx := range targetIdx {
		chunks[vecIdx].Embeddings = vectors[i]
	}

	out := make([]store.Chunk, 0, len(chunks))
	for _, c := range chunks {
		var content, metadata string
		if c.Content != nil {
			content = *c.Content
		}
		if c.Metadata != nil {
			metadata = *c.Metadata
		}
		out = append(out, store.Chunk{
			FragmentID:    c.FragmentID,
			ObjectID:      c.ObjectID,
			ContentType:   c.ContentType,
			Content:       content,
			Metadata:      metadata,
			FragmentIndex: c.FragmentIndex,
			EmbedderType:  c.EmbedderType,
			Dimension:     s.model.Dimension,
			Embedding:     c.Embeddings,
		})
	}
	return out, nil
}

func (s *Scheduler) emit(e Event) {
	if s.notify != nil {
		s.notify(e)
	}
}
