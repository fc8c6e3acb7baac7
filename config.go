package goreason

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the GoReason engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.goreason/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "goreason". The file will be <DBName>.db inside the
	// storage directory (~/.goreason/ or working dir).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.goreason/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat        LLMConfig `json:"chat" yaml:"chat"`
	Embedding   LLMConfig `json:"embedding" yaml:"embedding"`
	Vision      LLMConfig `json:"vision" yaml:"vision"`
	Translation LLMConfig `json:"translation" yaml:"translation"` // optional: fast model for query translation (defaults to Chat)

	// Retrieval weights for the hybrid vector+FTS5 fusion inside the store
	// (spec §4.6), independent of the multi-source retriever's own per-store
	// weights (spec §4.10, set on the Retriever after construction).
	WeightVector float64 `json:"weight_vector" yaml:"weight_vector"`
	WeightFTS    float64 `json:"weight_fts" yaml:"weight_fts"`

	// Chunking
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Image captioning
	CaptionImages bool `json:"caption_images" yaml:"caption_images"` // Opt-in: caption extracted images via vision LLM

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// Pdf controls the PDF reader (spec §4.2).
	Pdf PdfConfig `json:"pdf" yaml:"pdf"`

	// Scheduler controls the embedding scheduler (spec §4.7).
	MaxEmbedAttempts    int `json:"max_embed_attempts" yaml:"max_embed_attempts"`
	EmbedRetryBaseDelay int `json:"embed_retry_base_delay_ms" yaml:"embed_retry_base_delay_ms"`

	// Retriever defaults (spec §4.10).
	MaxNumDocs     int     `json:"max_num_docs" yaml:"max_num_docs"`
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold"`
}

// PdfConfig configures the PDF reader (spec §4.2).
type PdfConfig struct {
	ImageModel          string `json:"image_model" yaml:"image_model"`
	ExtractImages       bool   `json:"extract_images" yaml:"extract_images"`
	ExtractText         bool   `json:"extract_text" yaml:"extract_text"`
	MaxConcurrentImages int    `json:"max_concurrent_images" yaml:"max_concurrent_images"`
	MaxConcurrentPages  int    `json:"max_concurrent_pages" yaml:"max_concurrent_pages"`
}

// DefaultPdfConfig mirrors the original source's Default impl for PdfConfig.
func DefaultPdfConfig() PdfConfig {
	return PdfConfig{
		ImageModel:          "gemma3:4b",
		ExtractImages:       true,
		ExtractText:         true,
		MaxConcurrentImages: 10,
		MaxConcurrentPages:  5,
	}
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openrouter, xai, gemini, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.goreason/goreason.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "goreason",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Vision: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.2-vision",
			BaseURL:  "http://localhost:11434",
		},
		WeightVector:        1.0,
		WeightFTS:           1.0,
		MaxChunkTokens:      1024,
		ChunkOverlap:        128,
		EmbeddingDim:        768,
		Pdf:                 DefaultPdfConfig(),
		MaxEmbedAttempts:    5,
		EmbedRetryBaseDelay: 500,
		MaxNumDocs:          5,
		ScoreThreshold:      0.1,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "goreason"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".goreason")
		return filepath.Join(dir, name+".db")
	}
}

// resolveStorageRoot computes the directory chatfile.Store roots its
// chat/local_files tree under (spec §4.9): the directory holding the
// database file.
func (c *Config) resolveStorageRoot() string {
	return filepath.Dir(c.resolveDBPath())
}
