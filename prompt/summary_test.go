package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brunobiangulo/goreason/llm"
)

type fakeLoader struct {
	records []ChatMessageRecord
	err     error
}

func (f *fakeLoader) RecentMessages(ctx context.Context, chatID string, limit int) ([]ChatMessageRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fakeChatLLM struct {
	lastReq llm.ChatRequest
	reply   string
}

func (f *fakeChatLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeChatLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func TestNewSummaryMemoryClassifiesUnknownAsHuman(t *testing.T) {
	loader := &fakeLoader{records: []ChatMessageRecord{
		{AuthorType: AuthorUnknown, Content: "hi"},
		{AuthorType: AuthorSystem, Content: "welcome"},
		{AuthorType: AuthorAI, Content: "hello there"},
	}}
	m, err := NewSummaryMemory(context.Background(), "chat1", loader, nil, "")
	if err != nil {
		t.Fatalf("NewSummaryMemory: %v", err)
	}
	msgs := m.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages loaded, got %d", len(msgs))
	}
	if msgs[0].Role != "human" {
		t.Fatalf("expected Unknown author to classify as human, got %q", msgs[0].Role)
	}
	if msgs[1].Role != "system" || msgs[2].Role != "ai" {
		t.Fatalf("unexpected roles: %+v", msgs)
	}
}

func TestGenerateSummaryInvokesChainAndReplacesSummary(t *testing.T) {
	loader := &fakeLoader{records: []ChatMessageRecord{
		{AuthorType: AuthorHuman, Content: "what is this note about?"},
	}}
	chatLLM := &fakeChatLLM{reply: "a new rolling summary"}

	m, err := NewSummaryMemory(context.Background(), "chat1", loader, chatLLM, "old summary")
	if err != nil {
		t.Fatalf("NewSummaryMemory: %v", err)
	}

	got, err := m.GenerateSummary(context.Background())
	if err != nil {
		t.Fatalf("GenerateSummary: %v", err)
	}
	if got != "a new rolling summary" {
		t.Fatalf("expected chain output, got %q", got)
	}
	if m.CurrentSummary() != "a new rolling summary" {
		t.Fatalf("expected current_summary replaced, got %q", m.CurrentSummary())
	}

	sysMsg := chatLLM.lastReq.Messages[0].Content
	if !strings.Contains(sysMsg, "old summary") {
		t.Fatalf("expected prior summary in prompt, got %q", sysMsg)
	}
	if !strings.Contains(sysMsg, "human: what is this note about?") {
		t.Fatalf("expected rendered history line in prompt, got %q", sysMsg)
	}
}

func TestNewSummaryMemoryWithNilLoaderStartsEmpty(t *testing.T) {
	m, err := NewSummaryMemory(context.Background(), "chat1", nil, nil, "seed")
	if err != nil {
		t.Fatalf("NewSummaryMemory: %v", err)
	}
	if len(m.Messages()) != 0 {
		t.Fatalf("expected no messages with nil loader, got %+v", m.Messages())
	}
	if m.CurrentSummary() != "seed" {
		t.Fatalf("expected seed summary preserved, got %q", m.CurrentSummary())
	}
}

func TestAddMessageAndClear(t *testing.T) {
	m, _ := NewSummaryMemory(context.Background(), "chat1", nil, nil, "")
	m.AddMessage(llm.Message{Role: "human", Content: "hello"})
	if len(m.Messages()) != 1 {
		t.Fatalf("expected 1 message after AddMessage, got %d", len(m.Messages()))
	}
	m.Clear()
	if len(m.Messages()) != 0 {
		t.Fatalf("expected empty log after Clear, got %d", len(m.Messages()))
	}
}
