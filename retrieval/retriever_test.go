package retrieval

import (
	"context"
	"testing"

	"github.com/brunobiangulo/goreason"
)

// fakeStore is a minimal RetrieverStore for exercising the fan-out/sort
// algorithm without a real vector backend.
type fakeStore struct {
	name   string
	weight int
	docs   []goreason.RetrievalDocument
	err    error
}

func (f *fakeStore) RetrieverName() string { return f.name }
func (f *fakeStore) Weight() int           { return f.weight }
func (f *fakeStore) ReadDocuments(ctx context.Context, workspaceID, chatID, query string, limit int, ragIDs []string, scoreThreshold float64) ([]goreason.RetrievalDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeChatFiles struct {
	ids map[string][]string
}

func (f *fakeChatFiles) FileIDs(ctx context.Context, chatID string) ([]string, error) {
	return f.ids[chatID], nil
}

func TestRetrieveDocumentsSortsByWeightThenScore(t *testing.T) {
	storeA := &fakeStore{name: "A", weight: 1, docs: []goreason.RetrievalDocument{
		{Content: "a-high", Score: 0.9, ObjectID: "a1"},
		{Content: "a-low", Score: 0.2, ObjectID: "a2"},
	}}
	storeB := &fakeStore{name: "B", weight: 2, docs: []goreason.RetrievalDocument{
		{Content: "b-high", Score: 0.95, ObjectID: "b1"},
	}}

	r := NewRetriever("ws1", "", []RetrieverStore{storeA, storeB}, nil, nil)
	r.MaxNumDocs = 3

	docs, err := r.RetrieveDocuments(context.Background(), "plain query")
	if err != nil {
		t.Fatalf("RetrieveDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d: %+v", len(docs), docs)
	}
	want := []string{"a-high", "a-low", "b-high"}
	for i, w := range want {
		if docs[i].Content != w {
			t.Fatalf("position %d: want %q, got %q (full: %+v)", i, w, docs[i].Content, docs)
		}
	}
}

func TestRetrieveDocumentsLimitsToMaxNumDocs(t *testing.T) {
	storeA := &fakeStore{name: "A", weight: 1, docs: []goreason.RetrievalDocument{
		{Content: "one", Score: 0.9, ObjectID: "o1"},
		{Content: "two", Score: 0.8, ObjectID: "o2"},
		{Content: "three", Score: 0.7, ObjectID: "o3"},
	}}
	r := NewRetriever("ws1", "", []RetrieverStore{storeA}, nil, nil)
	r.MaxNumDocs = 2

	docs, err := r.RetrieveDocuments(context.Background(), "q")
	if err != nil {
		t.Fatalf("RetrieveDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
}

func TestRetrieveDocumentsAbsorbsPerStoreErrors(t *testing.T) {
	good := &fakeStore{name: "good", weight: 1, docs: []goreason.RetrievalDocument{
		{Content: "survives", Score: 0.5, ObjectID: "s1"},
	}}
	bad := &fakeStore{name: "bad", weight: 1, err: errFakeStore}

	r := NewRetriever("ws1", "", []RetrieverStore{good, bad}, nil, nil)
	docs, err := r.RetrieveDocuments(context.Background(), "q")
	if err != nil {
		t.Fatalf("expected fan-out errors to be absorbed, got %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "survives" {
		t.Fatalf("expected only the healthy store's docs, got %+v", docs)
	}
}

func TestGetRagIDsExpandsWithChatFiles(t *testing.T) {
	chatFiles := &fakeChatFiles{ids: map[string][]string{"C": {"f1", "f2"}}}
	r := NewRetriever("ws1", "C", nil, chatFiles, []string{"r1"})

	got := r.GetRagIDs(context.Background())
	want := []string{"r1", "f1", "f2", "C"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

func TestGetRagIDsWithNoChatFilesReturnsBase(t *testing.T) {
	chatFiles := &fakeChatFiles{ids: map[string][]string{}}
	r := NewRetriever("ws1", "C", nil, chatFiles, []string{"r1"})

	got := r.GetRagIDs(context.Background())
	if len(got) != 1 || got[0] != "r1" {
		t.Fatalf("expected base rag_ids unchanged, got %v", got)
	}
}

func TestSetRagIDsReplacesInPlace(t *testing.T) {
	r := NewRetriever("ws1", "", nil, nil, []string{"r1"})
	r.SetRagIDs([]string{"r2", "r3"})

	got := r.GetRagIDs(context.Background())
	if len(got) != 2 || got[0] != "r2" || got[1] != "r3" {
		t.Fatalf("expected replaced rag_ids, got %v", got)
	}
}

func TestDetectIdentifiersWidensLimit(t *testing.T) {
	if !detectIdentifiers("refer to ISO-9001 for compliance") {
		t.Fatal("expected ISO identifier to be detected")
	}
	if detectIdentifiers("what time is the meeting") {
		t.Fatal("expected plain query to have no identifiers")
	}
}

var errFakeStore = fakeErr("simulated store failure")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
