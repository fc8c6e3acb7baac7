package goreason

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// WorkspaceID, ObjectID, and ChatID are opaque 128-bit identifiers with a
// canonical text (UUID) form (spec §3).
type WorkspaceID = string
type ObjectID = string
type ChatID = string

// CollabType tags the kind of collaborative object an UnindexedCollab
// originates from.
type CollabType int

const (
	CollabTypeUnknown CollabType = iota
	CollabTypeDocument
	CollabTypeDatabaseRow
)

// UnindexedData is the payload carried by an UnindexedCollab: either a flat
// string or an ordered sequence of paragraphs.
type UnindexedData interface {
	IsEmpty() bool
	IntoString() string
}

// TextData is a flat-string UnindexedData variant.
type TextData string

func (t TextData) IsEmpty() bool      { return strings.TrimSpace(string(t)) == "" }
func (t TextData) IntoString() string { return string(t) }

// ParagraphsData is an ordered-paragraphs UnindexedData variant.
type ParagraphsData []string

func (p ParagraphsData) IsEmpty() bool {
	for _, s := range p {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

func (p ParagraphsData) IntoString() string { return strings.Join(p, "\n") }

// UnindexedCollabMetadata carries display metadata for an UnindexedCollab.
type UnindexedCollabMetadata struct {
	Name string `json:"name,omitempty"`
	Icon string `json:"icon,omitempty"`
}

// UnindexedCollab is the ingestion input unit (spec §3).
type UnindexedCollab struct {
	WorkspaceID WorkspaceID
	ObjectID    ObjectID
	CollabType  CollabType
	Data        UnindexedData
	Metadata    UnindexedCollabMetadata
}

// IsEmpty holds iff the payload is absent or empty (spec §3 invariant).
func (u UnindexedCollab) IsEmpty() bool {
	return u.Data == nil || u.Data.IsEmpty()
}

// RAGSource tags where a chunk's content originated from, mirroring the
// original source's RAGSource enum.
type RAGSource interface {
	AsStr() string
	FileName() string
}

// DocumentSource is the RAGSource for a note/document object.
type DocumentSource struct{}

func (DocumentSource) AsStr() string   { return "appflowy_document" }
func (DocumentSource) FileName() string { return "" }

// LocalFileSource is the RAGSource for an ingested local file (e.g. a PDF).
type LocalFileSource struct{ Name string }

func (LocalFileSource) AsStr() string      { return "local_file" }
func (s LocalFileSource) FileName() string { return s.Name }

// EmbeddedChunk is the persistence unit (spec §3).
type EmbeddedChunk struct {
	FragmentID    string
	ObjectID      ObjectID
	ContentType   int32
	Content       *string
	Metadata      *string
	FragmentIndex int32
	EmbedderType  int32
	Embeddings    []float32
}

// EmbeddingModel is a tagged variant keyed by supported dimension (spec §3).
type EmbeddingModel struct {
	Dimension int
	ModelName string
}

// SupportedDimensions lists the dimensions the core recognises.
func SupportedDimensions() []int { return []int{768, 2560} }

// NewEmbeddingModel builds an EmbeddingModel for the given (name, dimension)
// pair, degrading unknown dimensions to 768 with a logged warning (spec §3).
func NewEmbeddingModel(name string, dimension int) EmbeddingModel {
	for _, d := range SupportedDimensions() {
		if d == dimension {
			return EmbeddingModel{Dimension: dimension, ModelName: name}
		}
	}
	slog.Warn("unsupported embedding dimension, degrading to 768", "model", name, "requested_dimension", dimension)
	return EmbeddingModel{Dimension: 768, ModelName: name}
}

func (m EmbeddingModel) String() string {
	return fmt.Sprintf("%s(dim=%d)", m.ModelName, m.Dimension)
}

// ChatLocalFile is a row of the chat_local_file table (spec §3, §4.9).
type ChatLocalFile struct {
	FileID      string
	ChatID      ChatID
	FilePath    string
	FileContent string
}

// RetrievalDocument is produced by a vector store and consumed by the
// multi-source retriever (spec §3).
type RetrievalDocument struct {
	Content  string
	Score    float64
	Metadata json.RawMessage
	ObjectID ObjectID
}
