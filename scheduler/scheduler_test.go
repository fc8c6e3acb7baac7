//go:build cgo

package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brunobiangulo/goreason"
	"github.com/brunobiangulo/goreason/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeEmbedder returns one fixed-length vector per input text, counting
// calls and optionally failing the first N attempts to exercise retry.
type fakeEmbedder struct {
	mu        sync.Mutex
	dim       int
	calls     int
	failFirst int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call <= f.failFirst {
		return nil, errors.New("simulated embed failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		vec[0] = float32(i + 1)
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return f.dim }

func waitForEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scheduler event")
		return Event{}
	}
}

func newTestScheduler(t *testing.T, embedder *fakeEmbedder, maxAttempts int) (*Scheduler, *store.Store, chan Event) {
	t.Helper()
	st := newTestStore(t)
	events := make(chan Event, 8)
	s := New(st, embedder, goreason.EmbeddingModel{Dimension: 4, ModelName: "fake"}, maxAttempts, time.Millisecond, func(e Event) {
		events <- e
	})
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, st, events
}

func TestSchedulerIndexesEnqueuedObject(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}
	s, st, events := newTestScheduler(t, embedder, 3)

	s.Enqueue(goreason.UnindexedCollab{
		WorkspaceID: "ws1",
		ObjectID:    "obj1",
		Data:        goreason.ParagraphsData{"hello world", "goodbye world"},
		Metadata:    goreason.UnindexedCollabMetadata{Name: "note"},
	})

	e := waitForEvent(t, events)
	if e.Kind != EventDidFinishIndexing {
		t.Fatalf("expected EventDidFinishIndexing, got %+v", e)
	}

	dims, err := st.ListDimensions(context.Background())
	if err != nil {
		t.Fatalf("ListDimensions: %v", err)
	}
	if len(dims) != 1 || dims[0] != 4 {
		t.Fatalf("expected [4], got %v", dims)
	}
}

func TestSchedulerSkipsUnchangedContent(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}
	s, _, events := newTestScheduler(t, embedder, 3)

	collab := goreason.UnindexedCollab{
		WorkspaceID: "ws1",
		ObjectID:    "obj1",
		Data:        goreason.ParagraphsData{"stable content"},
		Metadata:    goreason.UnindexedCollabMetadata{Name: "note"},
	}

	s.Enqueue(collab)
	waitForEvent(t, events)

	embedder.mu.Lock()
	callsAfterFirst := embedder.calls
	embedder.mu.Unlock()

	// Re-enqueuing identical content must not trigger another embed call
	// (spec §4.7 idempotence against ObjectHash).
	s.Enqueue(collab)
	time.Sleep(50 * time.Millisecond)

	embedder.mu.Lock()
	defer embedder.mu.Unlock()
	if embedder.calls != callsAfterFirst {
		t.Fatalf("expected no additional embed calls, had %d then %d", callsAfterFirst, embedder.calls)
	}
}

func TestSchedulerSupersedesPendingJobForSameObject(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}
	s, st, events := newTestScheduler(t, embedder, 3)

	s.Enqueue(goreason.UnindexedCollab{
		WorkspaceID: "ws1",
		ObjectID:    "obj1",
		Data:        goreason.ParagraphsData{"version one"},
		Metadata:    goreason.UnindexedCollabMetadata{Name: "note"},
	})
	s.Enqueue(goreason.UnindexedCollab{
		WorkspaceID: "ws1",
		ObjectID:    "obj1",
		Data:        goreason.ParagraphsData{"version two, much longer than the first"},
		Metadata:    goreason.UnindexedCollabMetadata{Name: "note"},
	})

	// At least one finish event should arrive; drain until we see the object
	// settle and confirm only one object_id was ever processed.
	seen := 0
	for seen < 1 {
		e := waitForEvent(t, events)
		if e.ObjectID != "obj1" {
			t.Fatalf("unexpected object id in event: %+v", e)
		}
		seen++
	}

	_ = st
}

func TestSchedulerRetriesOnTransientFailure(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4, failFirst: 2}
	s, _, events := newTestScheduler(t, embedder, 5)

	s.Enqueue(goreason.UnindexedCollab{
		WorkspaceID: "ws1",
		ObjectID:    "obj1",
		Data:        goreason.ParagraphsData{"retry me"},
		Metadata:    goreason.UnindexedCollabMetadata{Name: "note"},
	})

	e := waitForEvent(t, events)
	if e.Kind != EventDidFinishIndexing {
		t.Fatalf("expected eventual success after retries, got %+v", e)
	}
}

func TestSchedulerEmitsFailureAfterMaxAttempts(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4, failFirst: 100}
	s, _, events := newTestScheduler(t, embedder, 2)

	s.Enqueue(goreason.UnindexedCollab{
		WorkspaceID: "ws1",
		ObjectID:    "obj1",
		Data:        goreason.ParagraphsData{"never succeeds"},
		Metadata:    goreason.UnindexedCollabMetadata{Name: "note"},
	})

	e := waitForEvent(t, events)
	if e.Kind != EventFailedToEmbedFile {
		t.Fatalf("expected EventFailedToEmbedFile, got %+v", e)
	}
	if e.Err == nil {
		t.Fatal("expected non-nil error on failure event")
	}
}

func TestSchedulerSkipsEmptyCollab(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}
	s, _, events := newTestScheduler(t, embedder, 3)

	s.Enqueue(goreason.UnindexedCollab{
		WorkspaceID: "ws1",
		ObjectID:    "obj1",
		Data:        goreason.ParagraphsData{"  ", ""},
	})

	select {
	case e := <-events:
		t.Fatalf("expected no event for empty collab, got %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}
