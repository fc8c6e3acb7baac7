package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextParser handles plain text (.txt) and markdown (.md) note exports —
// the flat-file half of the note-taking app's "markdown ingestion" scope
// (spec §1), alongside the structured-note-tree path that arrives as
// paragraphs through ConsumeIndexedData rather than a parsed file.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md", "markdown"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return &ParseResult{Method: "native"}, nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "md" || ext == "markdown" {
		return &ParseResult{Sections: splitMarkdownSections(content), Method: "native"}, nil
	}

	return &ParseResult{
		Sections: []Section{
			{
				Heading: filepath.Base(path),
				Content: content,
				Level:   1,
				Type:    "paragraph",
			},
		},
		Method: "native",
	}, nil
}

// splitMarkdownSections breaks markdown content on ATX-style headings
// ("#" .. "######"), grouping the lines under each heading into its own
// Section so the splitter downstream sees note-sized chunks instead of one
// giant blob per file.
func splitMarkdownSections(content string) []Section {
	lines := strings.Split(content, "\n")

	var sections []Section
	var heading string
	var level int
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if heading == "" && text == "" {
			return
		}
		sections = append(sections, Section{
			Heading: heading,
			Content: text,
			Level:   level,
			Type:    "paragraph",
		})
		body.Reset()
	}

	for _, line := range lines {
		if lvl, h, ok := parseATXHeading(line); ok {
			flush()
			heading = h
			level = lvl
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// parseATXHeading reports whether line is an ATX heading ("# Title" through
// "###### Title"), returning its level and trimmed text.
func parseATXHeading(line string) (level int, heading string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	for level = 0; level < len(trimmed) && level < 6 && trimmed[level] == '#'; level++ {
	}
	if level == 0 || level >= len(trimmed) || trimmed[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(trimmed[level+1:]), true
}
