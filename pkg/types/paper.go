package types

import (
	"fmt"
	"strings"
)

// PaperMetadata holds the descriptive attributes of a paper.
// Every field is optional and defaults to its zero value.
type PaperMetadata struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Abstract      string   `json:"abstract"`
	Categories    []string `json:"categories"`
	PublishedDate string   `json:"published_date"`

	// Source file locations managed by external collaborators
	PDFPath      string `json:"pdf_path,omitempty"`
	MarkdownPath string `json:"markdown_path,omitempty"`
	JSONPath     string `json:"json_path,omitempty"`
}

// ChunkInput is one section-scoped slice of text handed over by the Chunker.
type ChunkInput struct {
	SectionTitle string   `json:"section_title"`
	SectionLevel int      `json:"section_level"`
	SectionPath  []string `json:"section_path"`
	Content      string   `json:"content"`
	StartChar    int      `json:"start_char"`
	EndChar      int      `json:"end_char"`
}

// Validate checks a single chunk descriptor.
func (c *ChunkInput) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}
	if c.SectionLevel < 0 {
		return fmt.Errorf("section_level must be >= 0, got %d", c.SectionLevel)
	}
	return nil
}

// PaperInput is the unit of work for indexing: one paper and its ordered chunks.
type PaperInput struct {
	PaperID  string        `json:"paper_id"`
	Metadata PaperMetadata `json:"metadata"`
	Chunks   []ChunkInput  `json:"chunks"`
}

// Validate checks the paper id and every chunk.
func (p *PaperInput) Validate() error {
	if strings.TrimSpace(p.PaperID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptyPaperID)
	}
	for i := range p.Chunks {
		if err := p.Chunks[i].Validate(); err != nil {
			return fmt.Errorf("%w: chunk %d: %w", ErrInvalidInput, i, err)
		}
	}
	return nil
}
