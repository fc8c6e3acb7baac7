// Package chatfile implements chat-attached local file storage (spec §4.9):
// a filesystem layout under <root>/chat/local_files/<chat_id>/<message_id>/
// plus the chat_local_file SQL table the retriever consults for rag_id
// expansion (§4.10).
package chatfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/brunobiangulo/goreason/store"
)

// Store manages chat-local-file copies on disk plus their SQL rows.
type Store struct {
	root string
	db   *store.Store
}

// New builds a chatfile.Store rooted at <root>/chat/local_files.
func New(root string, db *store.Store) *Store {
	return &Store{root: filepath.Join(root, "chat", "local_files"), db: db}
}

// messageDir returns <root>/chat/local_files/<chatID>/<messageID>.
func (s *Store) messageDir(chatID, messageID string) string {
	return filepath.Join(s.root, chatID, messageID)
}

// CopyFile atomically copies srcPath into the chat/message directory
// (directory creation, then file copy, per spec §4.9), registers it in the
// chat_local_file table, and returns its generated file_id.
func (s *Store) CopyFile(ctx context.Context, chatID, messageID, srcPath string) (string, error) {
	dir := s.messageDir(chatID, messageID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chat file dir: %w", err)
	}

	filename := filepath.Base(srcPath)
	destPath := filepath.Join(dir, filename)

	if err := copyFileAtomic(srcPath, destPath); err != nil {
		return "", fmt.Errorf("copying chat file: %w", err)
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		return "", fmt.Errorf("reading copied chat file: %w", err)
	}

	fileID := uuid.NewString()
	if err := s.db.UpsertChatLocalFile(ctx, fileID, chatID, destPath, string(content)); err != nil {
		return "", fmt.Errorf("recording chat file: %w", err)
	}
	return fileID, nil
}

// copyFileAtomic writes to a temp file in the destination directory and
// renames it into place, so a crash mid-copy never leaves a partial file
// at destPath.
func copyFileAtomic(srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	tmp := destPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, destPath)
}

// FileIDs lists every file_id registered for chatID.
func (s *Store) FileIDs(ctx context.Context, chatID string) ([]string, error) {
	return s.db.ChatFileIDs(ctx, chatID)
}

// DeleteAllForChat removes every chat_local_file row for chatID and returns
// the number of rows deleted. The on-disk copies are left for the caller to
// reap along with the chat's directory, mirroring the original's
// table-first deletion order.
func (s *Store) DeleteAllForChat(ctx context.Context, chatID string) (int64, error) {
	n, err := s.db.DeleteAllChatFiles(ctx, chatID)
	if err != nil {
		return 0, err
	}
	os.RemoveAll(filepath.Join(s.root, chatID))
	return n, nil
}

// FilesForChat returns file paths for chatID: under messageID's directory
// if messageID is non-empty, or walking every message directory under the
// chat otherwise (spec §4.9 get_files_for_chat).
func (s *Store) FilesForChat(chatID, messageID string) ([]string, error) {
	if messageID != "" {
		return listDir(s.messageDir(chatID, messageID))
	}

	chatDir := filepath.Join(s.root, chatID)
	entries, err := os.ReadDir(chatDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chat dir: %w", err)
	}

	var all []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := listDir(filepath.Join(chatDir, e.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, files...)
	}
	return all, nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading message dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
