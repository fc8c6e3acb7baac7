//go:build cgo

package chatfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

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

func writeSrcFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return path
}

func TestCopyFileRegistersAndCopies(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := New(root, newTestStore(t))

	src := writeSrcFile(t, "notes.txt", "hello chat file")
	fileID, err := s.CopyFile(ctx, "chat1", "msg1", src)
	if err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	if fileID == "" {
		t.Fatal("expected non-empty file id")
	}

	destPath := filepath.Join(root, "chat", "local_files", "chat1", "msg1", "notes.txt")
	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(got) != "hello chat file" {
		t.Fatalf("copied content mismatch: %q", got)
	}

	ids, err := s.FileIDs(ctx, "chat1")
	if err != nil {
		t.Fatalf("FileIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != fileID {
		t.Fatalf("expected [%s], got %v", fileID, ids)
	}
}

func TestFilesForChatByMessageAndWholeChat(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := New(root, newTestStore(t))

	src1 := writeSrcFile(t, "a.txt", "a")
	src2 := writeSrcFile(t, "b.txt", "b")
	if _, err := s.CopyFile(ctx, "chat1", "msg1", src1); err != nil {
		t.Fatalf("CopyFile a: %v", err)
	}
	if _, err := s.CopyFile(ctx, "chat1", "msg2", src2); err != nil {
		t.Fatalf("CopyFile b: %v", err)
	}

	msgFiles, err := s.FilesForChat("chat1", "msg1")
	if err != nil {
		t.Fatalf("FilesForChat msg1: %v", err)
	}
	if len(msgFiles) != 1 || filepath.Base(msgFiles[0]) != "a.txt" {
		t.Fatalf("expected [a.txt], got %v", msgFiles)
	}

	allFiles, err := s.FilesForChat("chat1", "")
	if err != nil {
		t.Fatalf("FilesForChat all: %v", err)
	}
	if len(allFiles) != 2 {
		t.Fatalf("expected 2 files across both messages, got %v", allFiles)
	}
}

func TestFilesForChatMissingDirReturnsNil(t *testing.T) {
	root := t.TempDir()
	s := New(root, newTestStore(t))

	files, err := s.FilesForChat("missing-chat", "")
	if err != nil {
		t.Fatalf("FilesForChat: %v", err)
	}
	if files != nil {
		t.Fatalf("expected nil for missing chat dir, got %v", files)
	}
}

func TestDeleteAllForChatRemovesRowsAndFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := New(root, newTestStore(t))

	src := writeSrcFile(t, "a.txt", "a")
	if _, err := s.CopyFile(ctx, "chat1", "msg1", src); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	n, err := s.DeleteAllForChat(ctx, "chat1")
	if err != nil {
		t.Fatalf("DeleteAllForChat: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row deleted, got %d", n)
	}

	ids, err := s.FileIDs(ctx, "chat1")
	if err != nil {
		t.Fatalf("FileIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no file ids after delete, got %v", ids)
	}

	if _, err := os.Stat(filepath.Join(root, "chat", "local_files", "chat1")); !os.IsNotExist(err) {
		t.Fatalf("expected chat directory to be removed, stat err=%v", err)
	}
}
