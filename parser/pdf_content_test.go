package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
)

// TestPdfContentOrderingRestoresPageOrder is spec §8 scenario 3: pages
// inserted out of order (5, 2, 10, 1, 3) must iterate numerically ascending
// regardless of the parallel extraction order that produced them.
func TestPdfContentOrderingRestoresPageOrder(t *testing.T) {
	c := &PdfContent{pages: []PageContent{
		{PageNumber: 5, Paragraphs: []string{"five"}},
		{PageNumber: 2, Paragraphs: []string{"two"}},
		{PageNumber: 10, Paragraphs: []string{"ten"}},
		{PageNumber: 1, Paragraphs: []string{"one"}},
		{PageNumber: 3, Paragraphs: []string{"three"}},
	}}

	ordered := c.GetOrderedContent()
	var got []int
	for _, p := range ordered {
		got = append(got, p.PageNumber)
	}
	want := []int{1, 2, 3, 5, 10}
	if len(got) != len(want) {
		t.Fatalf("expected %d pages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected page order %v, got %v", want, got)
		}
	}
}

func TestPdfContentIntoTextPreservesPageMarkerOrder(t *testing.T) {
	c := &PdfContent{pages: []PageContent{
		{PageNumber: 3, Paragraphs: []string{"third"}},
		{PageNumber: 1, Paragraphs: []string{"first"}},
		{PageNumber: 2, Paragraphs: []string{"second"}},
	}}

	text := c.IntoText()
	idx1 := strings.Index(text, "--- Page 1 ---")
	idx2 := strings.Index(text, "--- Page 2 ---")
	idx3 := strings.Index(text, "--- Page 3 ---")
	if idx1 < 0 || idx2 < 0 || idx3 < 0 {
		t.Fatalf("expected all page markers present, got %q", text)
	}
	if !(idx1 < idx2 && idx2 < idx3) {
		t.Fatalf("expected markers in ascending page order, got %q", text)
	}
}

func TestPdfContentIntoTextPlainOmitsMarkers(t *testing.T) {
	c := &PdfContent{pages: []PageContent{
		{PageNumber: 2, Paragraphs: []string{"second"}},
		{PageNumber: 1, Paragraphs: []string{"first"}},
	}}

	plain := c.IntoTextPlain()
	if len(plain) != 2 || plain[0] != "first" || plain[1] != "second" {
		t.Fatalf("expected [first second] in page order, got %v", plain)
	}
}

type fakeImageOCR struct {
	results map[string]string
	err     error
	calls   int
}

func (f *fakeImageOCR) OCRImage(ctx context.Context, model string, data []byte, mimeType string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.results[string(data)], nil
}

func TestOcrPageImagesAppendsExtractedTextForEachImage(t *testing.T) {
	ocr := &fakeImageOCR{results: map[string]string{
		"a": "first image text",
		"b": "second image text",
	}}
	images := []ExtractedImage{
		{Data: []byte("a"), MIMEType: "image/png"},
		{Data: []byte("b"), MIMEType: "image/png"},
	}

	lines := ocrPageImages(context.Background(), images, PdfConfig{MaxConcurrentImages: 2, ImageModel: "m"}, ocr)

	if len(lines) != 2 {
		t.Fatalf("expected 2 OCR lines, got %d: %v", len(lines), lines)
	}
	if ocr.calls != 2 {
		t.Fatalf("expected 2 OCR calls, got %d", ocr.calls)
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "[Image: ") || !strings.HasSuffix(l, "]") {
			t.Fatalf("expected OCR line wrapped in %q markers, got %q", "[Image: ...]", l)
		}
	}
	want := map[string]bool{"[Image: first image text]": true, "[Image: second image text]": true}
	for _, l := range lines {
		if !want[l] {
			t.Fatalf("unexpected OCR line %q", l)
		}
	}
}

func TestOcrPageImagesDropsFailedImagesWithoutAborting(t *testing.T) {
	ocr := &fakeImageOCR{err: errors.New("vision provider unavailable")}
	images := []ExtractedImage{{Data: []byte("a"), MIMEType: "image/png"}}

	lines := ocrPageImages(context.Background(), images, PdfConfig{MaxConcurrentImages: 1, ImageModel: "m"}, ocr)
	if lines != nil {
		t.Fatalf("expected no OCR lines on failure, got %v", lines)
	}
}

func TestOcrPageImagesWithNoImagesReturnsNil(t *testing.T) {
	ocr := &fakeImageOCR{}
	lines := ocrPageImages(context.Background(), nil, PdfConfig{MaxConcurrentImages: 1}, ocr)
	if lines != nil {
		t.Fatalf("expected nil for empty image set, got %v", lines)
	}
	if ocr.calls != 0 {
		t.Fatalf("expected no OCR calls for empty image set, got %d", ocr.calls)
	}
}

func TestExtractOnePageSkipsOCRWhenImagesDisabled(t *testing.T) {
	ocr := &fakeImageOCR{results: map[string]string{}}
	// ExtractText is false so there is no real PDF page to read; this only
	// exercises the cfg.ExtractImages gate in extractOnePage.
	page := extractOnePage(context.Background(), pdf.Page{}, 1, PdfConfig{ExtractText: false, ExtractImages: false}, ocr)
	if len(page.Paragraphs) != 0 {
		t.Fatalf("expected no paragraphs when text and image extraction are both disabled, got %v", page.Paragraphs)
	}
	if ocr.calls != 0 {
		t.Fatalf("expected OCR not invoked when ExtractImages is false, got %d calls", ocr.calls)
	}
}
