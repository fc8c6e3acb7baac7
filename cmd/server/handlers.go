package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brunobiangulo/goreason"
	"github.com/brunobiangulo/goreason/prompt"
)

type handler struct {
	engine *goreason.Engine

	mu       sync.Mutex
	sessions map[string]*goreason.ChatSession
}

func newHandler(e *goreason.Engine) *handler {
	return &handler{engine: e, sessions: make(map[string]*goreason.ChatSession)}
}

func (h *handler) session(ctx context.Context, workspaceID, chatID string) (*goreason.ChatSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cs, ok := h.sessions[chatID]; ok {
		return cs, nil
	}
	cs, err := h.engine.NewChatSession(ctx, workspaceID, chatID, nil,
		"You are the note-taking app's assistant, helping the user understand their notes and attached files.",
		prompt.ResponseFormat{OutputLayout: "plain_text"}, nil, "")
	if err != nil {
		return nil, err
	}
	h.sessions[chatID] = cs
	return cs, nil
}

// POST /documents/{workspace}/{object}/index
// Synchronously splits, embeds, and persists a Document object's paragraphs.
func (h *handler) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	workspaceID := r.PathValue("workspace")
	objectID := r.PathValue("object")

	var req struct {
		Paragraphs []string `json:"paragraphs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.engine.IndexDocument(ctx, workspaceID, objectID, req.Paragraphs); err != nil {
		writeError(w, http.StatusInternalServerError, "indexing failed")
		slog.Error("index document error", "workspace", workspaceID, "object", objectID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "indexed"})
}

// POST /chat/{chat}/attach?workspace=...&message=...
// Accepts a multipart file upload, copies it into chat-local-file storage,
// and indexes its text as a retrievable preview.
func (h *handler) handleAttachFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	chatID := r.PathValue("chat")
	workspaceID := r.URL.Query().Get("workspace")
	messageID := r.URL.Query().Get("message")
	if workspaceID == "" || messageID == "" {
		writeError(w, http.StatusBadRequest, "workspace and message query params are required")
		return
	}

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart file upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	safeName := filepath.Base(header.Filename)
	tmpPath := filepath.Join(os.TempDir(), safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	dst.Close()
	defer os.Remove(tmpPath)

	fileID, err := h.engine.AttachLocalFile(ctx, workspaceID, chatID, messageID, tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "attach failed")
		slog.Error("attach file error", "chat", chatID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"file_id":  fileID,
		"filename": safeName,
	})
}

// POST /chat/{chat}/message?workspace=...
// Runs one retrieval + prompt-assembly + chat-completion turn.
func (h *handler) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	chatID := r.PathValue("chat")
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspace query param is required")
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	cs, err := h.session(ctx, workspaceID, chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "starting chat session failed")
		slog.Error("chat session error", "chat", chatID, "error", err)
		return
	}

	turn, err := cs.Ask(ctx, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chat failed")
		slog.Error("chat error", "chat", chatID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":  turn.Answer,
		"sources": turn.Sources,
	})
}

// DELETE /chat/{chat}/files
func (h *handler) handleDeleteChatFiles(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat")
	n, err := h.engine.DeleteChatFiles(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete chat files error", "chat", chatID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%s", msg)})
}
