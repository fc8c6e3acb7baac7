package goreason

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/brunobiangulo/goreason/llm"
	"github.com/brunobiangulo/goreason/store"
)

// SchedulerHandle is the subset of the embedding scheduler (spec §4.7) that
// the lifecycle context needs to hold and hand out. Defined here, rather
// than importing the scheduler package directly, so the scheduler can
// depend on this package's domain types without an import cycle.
type SchedulerHandle interface {
	Enqueue(collab UnindexedCollab)
	Shutdown(ctx context.Context)
}

// EmbedContext is the process-wide lifecycle registry of spec §4.8: three
// hot-swappable slots (embedder controller, vector store, scheduler),
// backed by atomic pointer swaps so readers always see a consistent
// snapshot without a lock (spec §5, §9 redesign note replacing a prior
// reader-writer-lock design with atomic snapshot swap).
type EmbedContext struct {
	controller atomic.Pointer[llm.VisionProvider]
	vectorDB   atomic.Pointer[store.Store]
	scheduler  atomic.Pointer[SchedulerHandle]
}

var sharedEmbedContext = &EmbedContext{}

// Shared returns the process-wide EmbedContext singleton.
func Shared() *EmbedContext { return sharedEmbedContext }

// InitVectorStore opens (or reuses) the on-disk vector store at path. It is
// a no-op on non-desktop platforms (spec §4.8), determined here by the
// caller explicitly passing desktop=false rather than a runtime OS probe,
// since this module has no notion of "desktop" outside of what the host
// application tells it.
func (c *EmbedContext) InitVectorStore(path string, dim int, desktop bool) error {
	if !desktop {
		return nil
	}
	s, err := store.New(path, dim)
	if err != nil {
		return Wrap(Internal, "opening vector store", err)
	}
	c.vectorDB.Store(&s)
	c.tryCreateScheduler()
	return nil
}

// SetEmbedder installs (or, with nil, releases) the embedder controller.
// Releasing it also releases the scheduler and signals its shutdown, since
// a scheduler exists iff both the controller and the vector store are
// present (spec §4.8).
func (c *EmbedContext) SetEmbedder(p llm.VisionProvider) {
	if p == nil {
		c.controller.Store(nil)
		if old := c.scheduler.Swap(nil); old != nil {
			(*old).Shutdown(context.Background())
		}
		return
	}
	c.controller.Store(&p)
	c.tryCreateScheduler()
}

// SetScheduler installs the scheduler slot directly. Callers that build the
// scheduler themselves (it needs both the controller and the store to
// construct) use this instead of relying on tryCreateScheduler.
func (c *EmbedContext) SetScheduler(s SchedulerHandle) {
	c.scheduler.Store(&s)
}

// tryCreateScheduler is a hook point: construction of the concrete
// scheduler requires both slots and the embedder/dimension configuration,
// which callers outside this package own (see goreason.go's engine). This
// method only logs readiness; the engine calls SetScheduler once it has
// built one.
func (c *EmbedContext) tryCreateScheduler() {
	if c.controller.Load() != nil && c.vectorDB.Load() != nil {
		slog.Debug("embed context ready for scheduler construction")
	}
}

// Embedder returns the current embedder controller, or nil if unset.
func (c *EmbedContext) Embedder() llm.VisionProvider {
	p := c.controller.Load()
	if p == nil {
		return nil
	}
	return *p
}

// VectorStore returns the current vector store, or nil if unset.
func (c *EmbedContext) VectorStore() *store.Store {
	return c.vectorDB.Load()
}

// GetScheduler returns the current scheduler, failing with
// LocalEmbeddingNotReady when the slot is empty (spec §4.8).
func (c *EmbedContext) GetScheduler() (SchedulerHandle, error) {
	s := c.scheduler.Load()
	if s == nil {
		return nil, New(LocalEmbeddingNotReady, "embedding scheduler not ready")
	}
	return *s, nil
}

// Teardown clears every slot, stopping the scheduler first so it never
// outlives the store or controller it depends on.
func (c *EmbedContext) Teardown(ctx context.Context) {
	if old := c.scheduler.Swap(nil); old != nil {
		(*old).Shutdown(ctx)
	}
	c.controller.Store(nil)
	if s := c.vectorDB.Swap(nil); s != nil {
		(*s).Close()
	}
}
