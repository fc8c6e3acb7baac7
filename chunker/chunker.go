package chunker

import (
	"log/slog"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/brunobiangulo/goreason"
)

// DefaultChunkSize and DefaultOverlap are the splitter parameters for
// document-type content (spec §4.3).
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func init() {
	training, err := english.EnglishModel()
	if err == nil {
		sentenceTokenizer = sentences.NewSentenceTokenizer(training)
	}
}

// Splitter turns an object's paragraphs into deduplicated, ordered
// EmbeddedChunks (spec §4.3).
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// NewSplitter applies the overlap>chunk_size clamp policy from spec §4.3.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > chunkSize {
		slog.Warn("chunk overlap exceeds chunk size, doubling chunk size", "overlap", overlap, "chunk_size", chunkSize)
		chunkSize = 2 * overlap
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split produces EmbeddedChunks for one object from its ordered paragraphs,
// a model, and a RAGSource tag (spec §4.3). Duplicate fragment_ids within
// this call are dropped, keeping the first (lowest fragment_index)
// occurrence.
func (s *Splitter) Split(objectID goreason.ObjectID, paragraphs []string, model goreason.EmbeddingModel, source goreason.RAGSource) []goreason.EmbeddedChunk {
	raw := s.groupParagraphs(paragraphs)

	metadata := CanonicalMetadata(objectID, source.AsStr(), source.FileName())

	seen := make(map[string]struct{}, len(raw))
	chunks := make([]goreason.EmbeddedChunk, 0, len(raw))
	var idx int32
	for _, content := range raw {
		if strings.TrimSpace(content) == "" {
			continue
		}
		fragmentID := FragmentID(content, metadata)
		if _, dup := seen[fragmentID]; dup {
			continue
		}
		seen[fragmentID] = struct{}{}

		c := content
		m := metadata
		chunks = append(chunks, goreason.EmbeddedChunk{
			FragmentID:    fragmentID,
			ObjectID:      objectID,
			Content:       &c,
			Metadata:      &m,
			FragmentIndex: idx,
		})
		idx++
	}
	return chunks
}

// groupParagraphs implements the fit-or-flush-then-split policy of spec
// §4.3: a paragraph fitting in the current buffer is appended directly;
// otherwise the buffer is flushed and the paragraph either starts a fresh
// buffer or, if it alone exceeds ChunkSize, is sliding-windowed with
// overlap.
func (s *Splitter) groupParagraphs(paragraphs []string) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
	}

	for _, raw := range paragraphs {
		for _, p := range PreserveTableChunks(raw) {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}

			if looksLikeTable(p) {
				// A table is kept atomic even if it exceeds ChunkSize: splitting
				// it would produce unreadable partial rows.
				flush()
				chunks = append(chunks, p)
				continue
			}

			if len(p) > s.ChunkSize {
				flush()
				chunks = append(chunks, s.slidingWindow(p)...)
				continue
			}

			if buf.Len()+len(p)+1 > s.ChunkSize && buf.Len() > 0 {
				flush()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(p)
		}
	}
	flush()

	return chunks
}

// slidingWindow splits an oversized paragraph into ChunkSize-character
// windows with Overlap characters of trailing context carried into the
// next window, splitting at sentence boundaries when possible rather than
// mid-word.
func (s *Splitter) slidingWindow(text string) []string {
	sents := splitSentences(text)
	if len(sents) == 0 {
		return nil
	}

	var windows []string
	var buf strings.Builder

	flush := func() string {
		out := strings.TrimSpace(buf.String())
		buf.Reset()
		return out
	}

	for _, sent := range sents {
		if buf.Len()+len(sent)+1 > s.ChunkSize && buf.Len() > 0 {
			finished := flush()
			windows = append(windows, finished)
			overlap := trailingChars(finished, s.Overlap)
			if overlap != "" {
				buf.WriteString(overlap)
				buf.WriteString(" ")
			}
		}
		buf.WriteString(sent)
		buf.WriteString(" ")
	}
	if remaining := flush(); remaining != "" {
		windows = append(windows, remaining)
	}

	// A single sentence longer than ChunkSize still needs hard character
	// slicing so no window exceeds the configured bound.
	var out []string
	for _, w := range windows {
		if len(w) <= s.ChunkSize {
			out = append(out, w)
			continue
		}
		out = append(out, hardSlice(w, s.ChunkSize, s.Overlap)...)
	}
	return out
}

func splitSentences(text string) []string {
	if sentenceTokenizer == nil {
		return strings.Fields(text)
	}
	var out []string
	for _, s := range sentenceTokenizer.Tokenize(text) {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func trailingChars(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) == 0 {
		return ""
	}
	if n > len(r) {
		n = len(r)
	}
	return string(r[len(r)-n:])
}

func hardSlice(s string, size, overlap int) []string {
	r := []rune(s)
	if size <= 0 {
		return []string{s}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; start < len(r); start += step {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
		if end == len(r) {
			break
		}
	}
	return out
}
