package parser

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/brunobiangulo/goreason/llm"
)

// PDFVisionParser performs per-image OCR via a vision LLM, feeding results
// back into the parallel PDF extraction pipeline (spec §4.2). It satisfies
// the imageOCR interface ParsePDFContent depends on.
type PDFVisionParser struct {
	visionProvider llm.VisionProvider
}

func NewPDFVisionParser(provider llm.VisionProvider) *PDFVisionParser {
	return &PDFVisionParser{visionProvider: provider}
}

func (p *PDFVisionParser) SupportedFormats() []string { return []string{"pdf"} }

// OCRImage extracts text from a single image using the exact prompt spec
// §4.2 specifies.
func (p *PDFVisionParser) OCRImage(ctx context.Context, model string, data []byte, mimeType string) (string, error) {
	b64 := base64.StdEncoding.EncodeToString(data)

	resp, err := p.visionProvider.ChatWithImages(ctx, llm.VisionChatRequest{
		Model: model,
		Messages: []llm.VisionMessage{
			{
				Role: "user",
				Content: []llm.ContentPart{
					{Type: "text", Text: ocrImagePrompt},
					{Type: "image_url", ImageURL: &llm.ImageURL{URL: "data:" + mimeType + ";base64," + b64}},
				},
			},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		return "", fmt.Errorf("image OCR failed: %w", err)
	}
	return resp.Content, nil
}

// Parse extracts a whole PDF via the per-page/per-image pipeline, producing
// one Section per page so it satisfies the generic Parser interface used
// by the registry when a vision-capable embedder is configured. Per-image
// OCR only runs when DetectComplexity judges the document complex enough to
// need it (tables, embedded images, multi-column layout) — a plain
// text-only PDF skips the vision-LLM round trips entirely.
func (p *PDFVisionParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	extractImages := true
	if cs, err := DetectComplexity(path); err == nil {
		extractImages = cs.IsComplex()
	}

	cfg := PdfConfig{ExtractText: true, ExtractImages: extractImages, MaxConcurrentPages: 5, MaxConcurrentImages: 10}
	content, err := ParsePDFContent(ctx, path, cfg, p)
	if err != nil {
		return nil, err
	}

	var sections []Section
	for _, page := range content.GetOrderedContent() {
		if len(page.Paragraphs) == 0 {
			continue
		}
		sections = append(sections, Section{
			Content:    joinParagraphs(page.Paragraphs),
			PageNumber: page.PageNumber,
			Type:       "paragraph",
		})
	}

	return &ParseResult{Sections: sections, Method: "vision"}, nil
}
