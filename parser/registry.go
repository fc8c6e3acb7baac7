package parser

import "fmt"

// Registry is the content-type-keyed parser lookup the indexer consults
// (spec §4.5, "Indexer registry"): a chat-attached local file's extension
// picks the parser used to turn it into sections before chunking.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a Registry over every format this note-taking app's
// local-file ingestion needs to cover: PDFs (native text + optional vision
// OCR), the structured-note-tree export formats (docx/xlsx), and flat
// markdown/text note exports.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}

	builtins := []Parser{&PDFParser{}, &DOCXParser{}, &XLSXParser{}, &TextParser{}}
	for _, p := range builtins {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get resolves format (a lowercased file extension, no leading dot) to its
// registered Parser.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

// Register installs or overrides the parser used for format — e.g. the
// engine swaps in PDFVisionParser for "pdf" once a vision LLM and caption
// config are available.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}
