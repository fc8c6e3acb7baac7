//go:build cgo

package goreason

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/goreason/llm"
	"github.com/brunobiangulo/goreason/prompt"
	"github.com/brunobiangulo/goreason/retrieval"
	"github.com/brunobiangulo/goreason/store"
)

// fakeScheduler is a minimal SchedulerHandle for exercising
// ConsumeIndexedData's content-type/empty filter without a real scheduler.
type fakeScheduler struct {
	enqueued []UnindexedCollab
}

func (f *fakeScheduler) Enqueue(collab UnindexedCollab) { f.enqueued = append(f.enqueued, collab) }
func (f *fakeScheduler) Shutdown(ctx context.Context)   {}

func TestConsumeIndexedDataFiltersNonDocumentAndEmpty(t *testing.T) {
	sched := &fakeScheduler{}
	Shared().SetScheduler(sched)
	defer Shared().Teardown(context.Background())

	e := &Engine{}

	cases := []struct {
		name    string
		collab  UnindexedCollab
		wantEnq bool
	}{
		{"document with content", UnindexedCollab{CollabType: CollabTypeDocument, Data: ParagraphsData{"hello"}}, true},
		{"database row", UnindexedCollab{CollabType: CollabTypeDatabaseRow, Data: ParagraphsData{"hello"}}, false},
		{"empty document", UnindexedCollab{CollabType: CollabTypeDocument, Data: ParagraphsData{"  ", ""}}, false},
		{"nil data", UnindexedCollab{CollabType: CollabTypeDocument}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched.enqueued = nil
			if err := e.ConsumeIndexedData(tc.collab); err != nil {
				t.Fatalf("ConsumeIndexedData: %v", err)
			}
			if got := len(sched.enqueued) == 1; got != tc.wantEnq {
				t.Fatalf("enqueued = %v, want %v", got, tc.wantEnq)
			}
		})
	}
}

func TestConsumeIndexedDataFailsWithoutScheduler(t *testing.T) {
	Shared().Teardown(context.Background())
	e := &Engine{}
	err := e.ConsumeIndexedData(UnindexedCollab{CollabType: CollabTypeDocument, Data: ParagraphsData{"hello"}})
	if err == nil {
		t.Fatal("expected error with no scheduler installed")
	}
}

// fakeEmbedder returns a fixed-dimension vector per input, independent of
// content, so IndexDocument's persistence path can be exercised without a
// network call.
type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return f.dim }

func TestEngineIndexDocumentPersistsChunks(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	embedder := &fakeEmbedder{dim: 4}
	model := EmbeddingModel{Dimension: 4, ModelName: "fake"}

	e := &Engine{
		store:    s,
		indexer:  NewDocumentIndexer(),
		embedder: embedder,
		model:    model,
	}

	ctx := context.Background()
	err = e.IndexDocument(ctx, "ws1", "obj1", []string{"first paragraph of a note", "second paragraph"})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	docs, err := s.ReadDocuments(ctx, "ws1", []float32{1, 0, 0, 0}, "paragraph", 10, nil, 0)
	if err != nil {
		t.Fatalf("ReadDocuments: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("expected at least one persisted chunk to be retrievable")
	}
	for _, d := range docs {
		if d.ObjectID != "obj1" {
			t.Fatalf("unexpected object id %q", d.ObjectID)
		}
	}
}

func TestEngineIndexDocumentSkipsEmptyParagraphs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	e := &Engine{
		store:    s,
		indexer:  NewDocumentIndexer(),
		embedder: &fakeEmbedder{dim: 4},
		model:    EmbeddingModel{Dimension: 4, ModelName: "fake"},
	}

	if err := e.IndexDocument(context.Background(), "ws1", "obj-empty", []string{"  ", ""}); err != nil {
		t.Fatalf("IndexDocument on empty paragraphs: %v", err)
	}
}

// fakeRetrieverStore is a RetrieverStore stub returning a fixed set of
// documents regardless of query, so ChatSession.Ask can be exercised without
// a real vector store or embedder.
type fakeRetrieverStore struct {
	name string
	docs []RetrievalDocument
}

func (f *fakeRetrieverStore) RetrieverName() string { return f.name }
func (f *fakeRetrieverStore) Weight() int           { return 1 }
func (f *fakeRetrieverStore) ReadDocuments(ctx context.Context, workspaceID, chatID, query string, limit int, ragIDs []string, scoreThreshold float64) ([]RetrievalDocument, error) {
	return f.docs, nil
}

// fakeChatFiles is a ChatFileLister stub with no attached files.
type fakeChatFiles struct{}

func (fakeChatFiles) FileIDs(ctx context.Context, chatID string) ([]string, error) { return nil, nil }

// fakeChatLLM is an llm.Provider stub that echoes a canned reply and records
// the request it was asked to answer.
type fakeChatLLM struct {
	lastReq llm.ChatRequest
	reply   string
}

func (f *fakeChatLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeChatLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func TestChatSessionAskAssemblesContextAndRecordsHistory(t *testing.T) {
	rstore := &fakeRetrieverStore{name: "fake", docs: []RetrievalDocument{
		{Content: "the note says the meeting is on Tuesday", Score: 0.9, ObjectID: "obj1"},
	}}
	chatLLM := &fakeChatLLM{reply: "The meeting is on Tuesday."}

	e := &Engine{chatLLM: chatLLM, cfg: Config{Chat: LLMConfig{Model: "test-model"}}}

	retriever := retrieval.NewRetriever("ws1", "chat1", []retrieval.RetrieverStore{rstore}, fakeChatFiles{}, nil)
	memory, err := prompt.NewSummaryMemory(context.Background(), "chat1", nil, chatLLM, "")
	if err != nil {
		t.Fatalf("NewSummaryMemory: %v", err)
	}

	cs := &ChatSession{
		engine:      e,
		workspaceID: "ws1",
		chatID:      "chat1",
		retriever:   retriever,
		promptor:    prompt.NewContextPrompt("you are a helpful assistant", prompt.ResponseFormat{OutputLayout: "plain_text"}, nil),
		memory:      memory,
	}

	turn, err := cs.Ask(context.Background(), "when is the meeting?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if turn.Answer != "The meeting is on Tuesday." {
		t.Fatalf("unexpected answer: %q", turn.Answer)
	}
	if len(turn.Sources) != 1 || turn.Sources[0].ObjectID != "obj1" {
		t.Fatalf("unexpected sources: %+v", turn.Sources)
	}
	if chatLLM.lastReq.Model != "test-model" {
		t.Fatalf("expected request model %q, got %q", "test-model", chatLLM.lastReq.Model)
	}

	msgs := memory.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected human+ai turn recorded, got %d messages", len(msgs))
	}
	if msgs[0].Role != "human" || msgs[1].Role != "ai" {
		t.Fatalf("unexpected roles: %+v", msgs)
	}
}
