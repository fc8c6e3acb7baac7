package goreason

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/goreason/chatfile"
	"github.com/brunobiangulo/goreason/chunker"
	"github.com/brunobiangulo/goreason/llm"
	"github.com/brunobiangulo/goreason/parser"
	"github.com/brunobiangulo/goreason/prompt"
	"github.com/brunobiangulo/goreason/retrieval"
	"github.com/brunobiangulo/goreason/scheduler"
	"github.com/brunobiangulo/goreason/store"

	"context"
)

// Engine is the process-lifetime object wiring the two halves of the core's
// control flow (spec §2): ingestion — the embedding scheduler draining
// consume_indexed_data submissions and chat-attached local files — and
// retrieval — the multi-source retriever handing a ranked document list to
// the prompt assembler. Control flow stops exactly where the spec does: the
// assembled message sequence is the caller's to send to its own chat LLM
// client and stream back to the user.
type Engine struct {
	cfg Config

	store     *store.Store
	chatFiles *chatfile.Store
	parsers   *parser.Registry
	indexer   *DocumentIndexer

	chatLLM   llm.Provider
	embedder  llm.Embedder
	visionLLM llm.VisionProvider
	model     EmbeddingModel

	sqliteStore *retrieval.SqliteStore
	memStore    *retrieval.MemoryStore

	events chan scheduler.Event
}

// New builds an Engine from cfg: opens the vector store through the
// process-wide EmbedContext (spec §4.8), constructs the LLM providers, the
// parser registry, and the embedding scheduler, and registers the scheduler
// back into EmbedContext so other holders of Shared() can reach it.
func New(cfg Config) (*Engine, error) {
	dbPath := cfg.resolveDBPath()
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	ec := Shared()
	if err := ec.InitVectorStore(dbPath, cfg.EmbeddingDim, true); err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s := ec.VectorStore()

	chatLLM, err := llm.NewProvider(llm.Config(cfg.Chat))
	if err != nil {
		ec.Teardown(context.Background())
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(llm.Config(cfg.Embedding))
	if err != nil {
		ec.Teardown(context.Background())
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	embedder := llm.NewEmbedder(embedLLM, cfg.Embedding.Model, cfg.EmbeddingDim)
	model := NewEmbeddingModel(cfg.Embedding.Model, cfg.EmbeddingDim)

	var visionLLM llm.VisionProvider
	if cfg.Vision.Provider != "" {
		v, err := llm.NewProvider(llm.Config(cfg.Vision))
		if err != nil {
			ec.Teardown(context.Background())
			return nil, fmt.Errorf("creating vision provider: %w", err)
		}
		if vp, ok := v.(llm.VisionProvider); ok {
			visionLLM = vp
			ec.SetEmbedder(vp)
		} else {
			slog.Warn("vision provider configured but does not support image input", "provider", cfg.Vision.Provider)
		}
	}

	reg := parser.NewRegistry()
	if visionLLM != nil && cfg.CaptionImages {
		reg.Register("pdf", parser.NewPDFVisionParser(visionLLM))
	}

	events := make(chan scheduler.Event, 64)
	sched := scheduler.New(s, embedder, model, cfg.MaxEmbedAttempts,
		time.Duration(cfg.EmbedRetryBaseDelay)*time.Millisecond,
		func(e scheduler.Event) {
			select {
			case events <- e:
			default:
				slog.Warn("engine: event channel full, dropping event", "object_id", e.ObjectID, "kind", e.Kind)
			}
		})
	ec.SetScheduler(sched)

	chatFiles := chatfile.New(cfg.resolveStorageRoot(), s)

	return &Engine{
		cfg:         cfg,
		store:       s,
		chatFiles:   chatFiles,
		parsers:     reg,
		indexer:     NewDocumentIndexer(),
		chatLLM:     chatLLM,
		embedder:    embedder,
		visionLLM:   visionLLM,
		model:       model,
		sqliteStore: retrieval.NewSqliteStore("sqlite", 1, s, embedder),
		memStore:    retrieval.NewMemoryStore("memory", 2, embedder),
		events:      events,
	}, nil
}

// Events returns the scheduler's completion/failure event stream (spec §6
// notification events: DidFinishIndexing / FailedToEmbedFile).
func (e *Engine) Events() <-chan scheduler.Event { return e.events }

// ConsumeIndexedData is the ingestion interface (spec §6): submissions are
// filtered to content_type == Document && !is_empty() before being handed to
// the scheduler, mirroring the original's consume_indexed_data filter.
func (e *Engine) ConsumeIndexedData(collab UnindexedCollab) error {
	if collab.CollabType != CollabTypeDocument || collab.IsEmpty() {
		return nil
	}
	sh, err := Shared().GetScheduler()
	if err != nil {
		return err
	}
	sh.Enqueue(collab)
	return nil
}

// IndexDocument synchronously splits, embeds, and persists a Document
// object's paragraphs (spec §4.5), bypassing the scheduler queue entirely —
// a user-triggered reindex rather than the collaborative-edit-triggered
// async path ConsumeIndexedData feeds.
func (e *Engine) IndexDocument(ctx context.Context, workspaceID, objectID string, paragraphs []string) error {
	chunks, err := e.indexer.Index(ctx, objectID, paragraphs, e.model, e.embedder)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		var content, metadata string
		if c.Content != nil {
			content = *c.Content
		}
		if c.Metadata != nil {
			metadata = *c.Metadata
		}
		storeChunks[i] = store.Chunk{
			FragmentID:    c.FragmentID,
			ObjectID:      c.ObjectID,
			ContentType:   c.ContentType,
			Content:       content,
			Metadata:      metadata,
			FragmentIndex: c.FragmentIndex,
			EmbedderType:  c.EmbedderType,
			Dimension:     e.model.Dimension,
			Embedding:     c.Embeddings,
		}
	}

	contentHash := chunker.FragmentID(strings.Join(paragraphs, "\n"),
		chunker.CanonicalMetadata(objectID, DocumentSource{}.AsStr(), ""))
	return e.store.ReplaceChunks(ctx, workspaceID, objectID, storeChunks, contentHash, e.model.Dimension)
}

// AttachLocalFile copies srcPath into chat-local-file storage (spec §4.9),
// parses it through the registry, and indexes its text as an ephemeral
// preview in the in-memory retriever store so it is retrievable before the
// scheduler would ever see it (this content never goes through
// ConsumeIndexedData — it has no collaborative-document home to embed
// against). Returns the generated file id, which doubles as both the
// chat_local_file row key and the preview's rag_id/object_id.
func (e *Engine) AttachLocalFile(ctx context.Context, workspaceID, chatID, messageID, srcPath string) (string, error) {
	fileID, err := e.chatFiles.CopyFile(ctx, chatID, messageID, srcPath)
	if err != nil {
		return "", Wrap(Internal, "copying chat-local file", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(srcPath), "."))
	p, err := e.parsers.Get(ext)
	if err != nil {
		return fileID, Wrap(NotSupport, fmt.Sprintf("no parser for %q", ext), err)
	}

	parsed, err := p.Parse(ctx, srcPath)
	if err != nil {
		return fileID, Wrap(InvalidData, "parsing chat-local file", err)
	}

	var sb strings.Builder
	for _, sec := range parsed.Sections {
		sb.WriteString(sec.Content)
		sb.WriteString("\n")
	}

	metadata := map[string]string{"filename": filepath.Base(srcPath), "chat_id": chatID}
	if err := e.memStore.Put(ctx, workspaceID, fileID, sb.String(), metadata); err != nil {
		return fileID, Wrap(Internal, "indexing chat-local file preview", err)
	}
	return fileID, nil
}

// ChatSession is one conversation's retrieval + prompt-assembly state (spec
// §4.10-§4.12): a Retriever scoped to the chat's rag_ids, a ContextPrompt
// holding the system/format messages, and a SummaryMemory holding the
// rolling chat history.
type ChatSession struct {
	engine      *Engine
	workspaceID string
	chatID      string

	retriever *retrieval.Retriever
	promptor  *prompt.ContextPrompt
	memory    *prompt.SummaryMemory
}

// NewChatSession builds a ChatSession over both registered retriever stores
// (the persisted sqlite store and the ephemeral in-memory preview store),
// seeded with ragIDs, a system message, a response format, and the chat's
// persisted history via loader (may be nil for a fresh chat).
func (e *Engine) NewChatSession(ctx context.Context, workspaceID, chatID string, ragIDs []string, systemMsg string, format prompt.ResponseFormat, loader prompt.ChatHistoryLoader, priorSummary string) (*ChatSession, error) {
	retriever := retrieval.NewRetriever(workspaceID, chatID,
		[]retrieval.RetrieverStore{e.sqliteStore, e.memStore}, e.chatFiles, ragIDs)
	if e.cfg.MaxNumDocs > 0 {
		retriever.MaxNumDocs = e.cfg.MaxNumDocs
	}
	if e.cfg.ScoreThreshold > 0 {
		retriever.ScoreThreshold = e.cfg.ScoreThreshold
	}

	memory, err := prompt.NewSummaryMemory(ctx, chatID, loader, e.chatLLM, priorSummary)
	if err != nil {
		return nil, Wrap(Internal, "loading chat history", err)
	}

	return &ChatSession{
		engine:      e,
		workspaceID: workspaceID,
		chatID:      chatID,
		retriever:   retriever,
		promptor:    prompt.NewContextPrompt(systemMsg, format, ragIDs),
		memory:      memory,
	}, nil
}

// SetFormat updates the session's response-format instruction.
func (cs *ChatSession) SetFormat(format prompt.ResponseFormat) { cs.promptor.SetFormat(format) }

// SetRagIDs replaces the session's base rag_ids.
func (cs *ChatSession) SetRagIDs(ragIDs []string) {
	cs.retriever.SetRagIDs(ragIDs)
	cs.promptor.SetRagIDs(ragIDs)
}

// ChatTurn is one question/answer exchange: the retrieved sources and the
// chat LLM's response to the assembled message sequence.
type ChatTurn struct {
	Answer   string
	Sources  []RetrievalDocument
	Messages []llm.Message
}

// Ask runs one retrieval + prompt-assembly + chat-completion turn (spec
// §4.10-§4.12): fan out the question across both retriever stores, assemble
// the message sequence from the result, send it to the chat LLM, and append
// both sides of the exchange to the session's rolling history.
func (cs *ChatSession) Ask(ctx context.Context, question string) (*ChatTurn, error) {
	effectiveRagIDs := cs.retriever.GetRagIDs(ctx)
	cs.promptor.SetRagIDs(effectiveRagIDs)

	docs, err := cs.retriever.RetrieveDocuments(ctx, question)
	if err != nil {
		return nil, Wrap(Internal, "retrieving documents", err)
	}

	var contextText strings.Builder
	for i, d := range docs {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(d.Content)
	}

	history := cs.memory.Messages()
	historyLines := make([]string, len(history))
	for i, m := range history {
		historyLines[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}

	messages := cs.promptor.Build(question, contextText.String(), historyLines)

	resp, err := cs.engine.chatLLM.Chat(ctx, llm.ChatRequest{
		Model:    cs.engine.cfg.Chat.Model,
		Messages: messages,
	})
	if err != nil {
		return nil, Wrap(Internal, "chat completion", err)
	}

	cs.memory.AddMessage(llm.Message{Role: "human", Content: question})
	cs.memory.AddMessage(llm.Message{Role: "ai", Content: resp.Content})

	return &ChatTurn{Answer: resp.Content, Sources: docs, Messages: messages}, nil
}

// GenerateSummary refreshes the session's rolling summary from its logged
// messages (spec §4.12).
func (cs *ChatSession) GenerateSummary(ctx context.Context) (string, error) {
	return cs.memory.GenerateSummary(ctx)
}

// DeleteChatFiles removes every chat-local-file row and on-disk copy for
// chatID (spec §4.9).
func (e *Engine) DeleteChatFiles(ctx context.Context, chatID string) (int64, error) {
	return e.chatFiles.DeleteAllForChat(ctx, chatID)
}

// Store returns the underlying vector store for diagnostic access.
func (e *Engine) Store() *store.Store { return e.store }

// Close tears down the scheduler, the vision controller, and the vector
// store via the shared EmbedContext (spec §4.8 Teardown).
func (e *Engine) Close() error {
	Shared().Teardown(context.Background())
	close(e.events)
	return nil
}
