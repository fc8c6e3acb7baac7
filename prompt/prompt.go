// Package prompt implements the chat LLM message assembler (spec §4.11): a
// system message, a response-format instruction, an optional chat-history
// expansion, and a context template selected by whether rag_ids are present.
package prompt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/brunobiangulo/goreason/llm"
)

// qaTemplate is used when no rag_ids are registered: the question is
// answered with no retrieved context at all.
const qaTemplate = "Question: %s\nAnswer:"

// qaContextTemplate is used whenever rag_ids are non-empty: the model is
// instructed to answer strictly from the supplied context.
const qaContextTemplate = `Only use the context provided below to formulate your answer. Do not use any other information.
Do not reference external knowledge or information outside the context.

##Context##
%s

Question: %s
Answer:`

// historyTemplate renders the prior conversation as a system-role message
// ahead of the context template.
const historyTemplate = `The following is a conversation between the User and you. Refer to the conversation history below when answering the User's question.
Current conversation:
%s`

// ResponseFormat describes how the model should lay out its answer.
// OutputLayout distinguishes formats for the idempotence check in SetFormat
// (spec §4.11: "only replaces the format message when output_layout
// differs").
type ResponseFormat struct {
	OutputLayout string
}

// formatInstruction renders the response-format instruction message body for
// a given layout.
func formatInstruction(f ResponseFormat) string {
	switch f.OutputLayout {
	case "", "plain_text":
		return "Respond in plain text, using clear and concise prose."
	case "bullet_list":
		return "Respond using a bulleted list of concise points."
	case "table":
		return "Respond using a Markdown table summarizing the relevant facts."
	case "rich_text":
		return "Respond using Markdown rich text (headings, bold, lists) where it improves clarity."
	default:
		return "Respond in plain text, using clear and concise prose."
	}
}

// ContextPrompt is the spec §4.11 message assembler: a fixed system message,
// a hot-swappable format instruction, and a context template selected by
// rag_ids, all swapped in place behind a mutex so concurrent Build calls see
// a consistent snapshot (mirrors the original's Arc<RwLock<..>> fields).
type ContextPrompt struct {
	systemMsg llm.Message

	mu        sync.RWMutex
	ragIDs    []string
	format    ResponseFormat
	formatMsg llm.Message
}

// NewContextPrompt builds a ContextPrompt for the given system message,
// initial response format, and initial rag_ids.
func NewContextPrompt(systemMsg string, format ResponseFormat, ragIDs []string) *ContextPrompt {
	return &ContextPrompt{
		systemMsg: llm.Message{Role: "system", Content: systemMsg},
		ragIDs:    append([]string(nil), ragIDs...),
		format:    format,
		formatMsg: llm.Message{Role: "system", Content: formatInstruction(format)},
	}
}

// SetFormat replaces the format message only when OutputLayout actually
// changed (spec §4.11 idempotence).
func (p *ContextPrompt) SetFormat(newFmt ResponseFormat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format.OutputLayout == newFmt.OutputLayout {
		return
	}
	p.format = newFmt
	p.formatMsg = llm.Message{Role: "system", Content: formatInstruction(newFmt)}
}

// SetRagIDs swaps the context template iff the id set actually changed
// (spec §4.11).
func (p *ContextPrompt) SetRagIDs(newIDs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sameIDs(p.ragIDs, newIDs) {
		return
	}
	p.ragIDs = append([]string(nil), newIDs...)
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Build assembles the message sequence for one turn: [system, format,
// history-expansion?, context-expansion] (spec §4.11 output order).
// chatHistory is the rendered "role: content" history lines (see
// prompt/summary.go); pass nil/empty to omit the history block.
func (p *ContextPrompt) Build(question, context string, chatHistory []string) []llm.Message {
	p.mu.RLock()
	ragIDs := append([]string(nil), p.ragIDs...)
	formatMsg := p.formatMsg
	p.mu.RUnlock()

	out := make([]llm.Message, 0, 4)
	out = append(out, p.systemMsg, formatMsg)

	if len(chatHistory) > 0 {
		out = append(out, llm.Message{
			Role:    "system",
			Content: fmtHistory(chatHistory),
		})
	}

	if len(ragIDs) == 0 {
		out = append(out, llm.Message{Role: "user", Content: fmtQA(question)})
	} else {
		out = append(out, llm.Message{Role: "user", Content: fmtQAContext(context, question)})
	}
	return out
}

func fmtQA(question string) string {
	return fmt.Sprintf(qaTemplate, question)
}

func fmtQAContext(context, question string) string {
	return fmt.Sprintf(qaContextTemplate, context, question)
}

func fmtHistory(lines []string) string {
	return fmt.Sprintf(historyTemplate, strings.Join(lines, "\n"))
}
