//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestInsertChunksAndDeleteByObject(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	chunks := []Chunk{
		{FragmentID: "aaaa", ObjectID: "obj1", ContentType: 0, Content: "hello world", FragmentIndex: 0, Dimension: 4, Embedding: []float32{0.1, 0.2, 0.3, 0.4}},
		{FragmentID: "bbbb", ObjectID: "obj1", ContentType: 0, Content: "goodbye world", FragmentIndex: 1, Dimension: 4, Embedding: []float32{0.4, 0.3, 0.2, 0.1}},
	}
	if err := s.InsertChunks(ctx, "ws1", chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	dims, err := s.ListDimensions(ctx)
	if err != nil {
		t.Fatalf("ListDimensions: %v", err)
	}
	if len(dims) != 1 || dims[0] != 4 {
		t.Fatalf("expected [4], got %v", dims)
	}

	if err := s.DeleteByObject(ctx, "ws1", "obj1"); err != nil {
		t.Fatalf("DeleteByObject: %v", err)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM embedded_chunks WHERE workspace_id = 'ws1'`).Scan(&count); err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 chunks after delete, got %d", count)
	}
}

func TestReadDocumentsFiltersByWorkspaceAndThreshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	chunks := []Chunk{
		{FragmentID: "c1", ObjectID: "obj1", Content: "apples are red", FragmentIndex: 0, Dimension: 4, Embedding: []float32{1, 0, 0, 0}},
		{FragmentID: "c2", ObjectID: "obj2", Content: "oranges are orange", FragmentIndex: 0, Dimension: 4, Embedding: []float32{0, 1, 0, 0}},
	}
	if err := s.InsertChunks(ctx, "ws1", chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
	other := []Chunk{
		{FragmentID: "c3", ObjectID: "obj3", Content: "bananas are yellow", FragmentIndex: 0, Dimension: 4, Embedding: []float32{1, 0, 0, 0}},
	}
	if err := s.InsertChunks(ctx, "ws2", other); err != nil {
		t.Fatalf("InsertChunks ws2: %v", err)
	}

	docs, err := s.ReadDocuments(ctx, "ws1", []float32{1, 0, 0, 0}, "", 10, nil, -1)
	if err != nil {
		t.Fatalf("ReadDocuments: %v", err)
	}
	for _, d := range docs {
		if d.ObjectID == "obj3" {
			t.Fatalf("result leaked across workspace boundary: %+v", d)
		}
	}
}

func TestChatLocalFileUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpsertChatLocalFile(ctx, "f1", "chat1", "/tmp/chat1/m1/a.pdf", ""); err != nil {
		t.Fatalf("UpsertChatLocalFile: %v", err)
	}
	if err := s.UpsertChatLocalFile(ctx, "f2", "chat1", "/tmp/chat1/m1/b.pdf", ""); err != nil {
		t.Fatalf("UpsertChatLocalFile: %v", err)
	}

	ids, err := s.ChatFileIDs(ctx, "chat1")
	if err != nil {
		t.Fatalf("ChatFileIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 file ids, got %d", len(ids))
	}

	n, err := s.DeleteAllChatFiles(ctx, "chat1")
	if err != nil {
		t.Fatalf("DeleteAllChatFiles: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", n)
	}
}

func TestObjectHashRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, _, ok, err := s.ObjectHash(ctx, "ws1", "obj1"); err != nil || ok {
		t.Fatalf("expected no prior hash, ok=%v err=%v", ok, err)
	}

	if err := s.SetObjectHash(ctx, "ws1", "obj1", "deadbeef", 768); err != nil {
		t.Fatalf("SetObjectHash: %v", err)
	}
	hash, dim, ok, err := s.ObjectHash(ctx, "ws1", "obj1")
	if err != nil || !ok {
		t.Fatalf("expected recorded hash, ok=%v err=%v", ok, err)
	}
	if hash != "deadbeef" || dim != 768 {
		t.Fatalf("got hash=%q dim=%d", hash, dim)
	}
}
