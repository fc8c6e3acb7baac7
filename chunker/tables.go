package chunker

import "strings"

// TableChunk holds a detected table block and its surrounding context.
type TableChunk struct {
	Content    string // The full table text, preserved as-is.
	StartLine  int    // Zero-based line index where the table begins.
	EndLine    int    // Zero-based line index where the table ends (exclusive).
	HasHeaders bool   // Whether a header separator row was detected.
}

// DetectTables scans text and identifies contiguous blocks that appear to
// be tabular data, so the splitter can keep them as atomic units instead
// of breaking a table across a chunk boundary (supplements spec §4.3,
// which is otherwise silent on markdown tables).
func DetectTables(text string) []TableChunk {
	lines := strings.Split(text, "\n")
	var tables []TableChunk

	i := 0
	for i < len(lines) {
		if isTableLine(lines[i]) {
			start := i
			hasHeaders := false
			for i < len(lines) && isTableLine(lines[i]) {
				if isHeaderSeparator(lines[i]) {
					hasHeaders = true
				}
				i++
			}
			if i-start >= 2 {
				content := strings.Join(lines[start:i], "\n")
				tables = append(tables, TableChunk{
					Content:    content,
					StartLine:  start,
					EndLine:    i,
					HasHeaders: hasHeaders,
				})
			}
			continue
		}
		i++
	}
	return tables
}

// PreserveTableChunks splits text into document-ordered fragments where
// each detected table is kept as a single atomic fragment and the
// remaining prose is returned unsplit, ready for the splitter's normal
// fit-or-flush paragraph handling.
func PreserveTableChunks(text string) []string {
	tables := DetectTables(text)
	if len(tables) == 0 {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	var fragments []string
	cursor := 0

	for _, tbl := range tables {
		if cursor < tbl.StartLine {
			prose := strings.TrimSpace(strings.Join(lines[cursor:tbl.StartLine], "\n"))
			if prose != "" {
				fragments = append(fragments, prose)
			}
		}
		fragments = append(fragments, tbl.Content)
		cursor = tbl.EndLine
	}

	if cursor < len(lines) {
		prose := strings.TrimSpace(strings.Join(lines[cursor:], "\n"))
		if prose != "" {
			fragments = append(fragments, prose)
		}
	}

	return fragments
}

// looksLikeTable reports whether every non-blank line of text is part of
// a table, i.e. the fragment as a whole is a table rather than prose
// containing one.
func looksLikeTable(text string) bool {
	lines := strings.Split(text, "\n")
	seen := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		seen++
		if !isTableLine(l) {
			return false
		}
	}
	return seen >= 2
}

func isTableLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "|") {
		return true
	}
	if strings.Count(trimmed, "\t") >= 2 {
		return true
	}
	return isHeaderSeparator(trimmed)
}

// isHeaderSeparator detects markdown-style header separators like
// "|---|---|" or "------".
func isHeaderSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	cleaned := strings.ReplaceAll(trimmed, "|", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	if len(cleaned) < 3 {
		return false
	}
	for _, r := range cleaned {
		if r != '-' {
			return false
		}
	}
	return true
}
