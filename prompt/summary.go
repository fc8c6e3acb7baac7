package prompt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/brunobiangulo/goreason/llm"
)

// AuthorType classifies who sent a persisted chat message, mirroring the
// original's ChatAuthorType. Unknown degrades to Human on load (spec §4.12).
type AuthorType int

const (
	AuthorUnknown AuthorType = iota
	AuthorHuman
	AuthorSystem
	AuthorAI
)

// ChatMessageRecord is one persisted chat message as loaded from storage.
type ChatMessageRecord struct {
	AuthorType AuthorType
	Content    string
}

// ChatHistoryLoader fetches the most recent persisted chat messages for a
// chat id, newest-last, capped by limit.
type ChatHistoryLoader interface {
	RecentMessages(ctx context.Context, chatID string, limit int) ([]ChatMessageRecord, error)
}

// historyLimit is the number of most-recent persisted messages loaded on
// construction (spec §4.12).
const historyLimit = 10

const summarySystemPrompt = `You are the note-taking app's assistant, tasked with progressively summarizing the lines of conversation provided. With each new line, you add to the previous summary and return an updated summary.
Current summary:
%s

New lines of conversation:
%s

New summary:`

// roleLabel renders an AuthorType the way message_to_string_with_role does:
// a short role tag the summarization prompt can read as "<role>: <content>".
func roleLabel(a AuthorType) string {
	switch a {
	case AuthorSystem:
		return "system"
	case AuthorAI:
		return "ai"
	default:
		return "human"
	}
}

// SummaryMemory is the spec §4.12 append-only chat memory: an in-memory
// message log seeded from the last 10 persisted messages, plus a
// progressively-updated current_summary string.
type SummaryMemory struct {
	chatLLM llm.Provider

	mu             sync.Mutex
	messages       []llm.Message
	currentSummary string
}

// NewSummaryMemory loads the most recent persisted messages for chatID
// (classifying Unknown authors as Human) and seeds current_summary.
func NewSummaryMemory(ctx context.Context, chatID string, loader ChatHistoryLoader, chatLLM llm.Provider, summary string) (*SummaryMemory, error) {
	m := &SummaryMemory{chatLLM: chatLLM, currentSummary: summary}
	if loader == nil {
		return m, nil
	}
	records, err := loader.RecentMessages(ctx, chatID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}
	for _, r := range records {
		m.messages = append(m.messages, llm.Message{Role: roleLabel(r.AuthorType), Content: r.Content})
	}
	return m, nil
}

// AddMessage appends a message to the in-memory log.
func (m *SummaryMemory) AddMessage(msg llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// Clear empties the in-memory log without touching current_summary.
func (m *SummaryMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// Messages returns a snapshot of the in-memory log.
func (m *SummaryMemory) Messages() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Message(nil), m.messages...)
}

// CurrentSummary returns the latest generated summary string.
func (m *SummaryMemory) CurrentSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentSummary
}

// GenerateSummary renders the logged messages as "<role>: <content>" lines,
// invokes the summarization chain with {current_summary, new_lines}, and
// replaces current_summary with the chain's output (spec §4.12).
func (m *SummaryMemory) GenerateSummary(ctx context.Context) (string, error) {
	m.mu.Lock()
	newLines := messagesToLines(m.messages)
	current := m.currentSummary
	m.mu.Unlock()

	resp, err := m.chatLLM.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(summarySystemPrompt, current, strings.Join(newLines, "\n"))},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generating chat summary: %w", err)
	}

	m.mu.Lock()
	m.currentSummary = resp.Content
	m.mu.Unlock()
	return resp.Content, nil
}

func messagesToLines(messages []llm.Message) []string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = fmt.Sprintf("%s: %s", msg.Role, msg.Content)
	}
	return lines
}
