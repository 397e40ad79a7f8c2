// Package models contains domain types for the TechSpec Reviewer.
package models

import "strings"

// BlockType distinguishes paragraph text from tabular content.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockTable     BlockType = "table"
)

// ContentBlock is one unit of extracted document content, in document order.
type ContentBlock struct {
	Type BlockType  `json:"type" msgpack:"type"`
	Text string     `json:"text" msgpack:"text"`
	Data [][]string `json:"data,omitempty" msgpack:"data,omitempty"` // table cells, row-major
}

// Paragraph builds a paragraph block.
func Paragraph(text string) ContentBlock {
	return ContentBlock{Type: BlockParagraph, Text: text}
}

// Table builds a table block. Text is rows joined by newlines, cells by tabs.
func Table(rows [][]string) ContentBlock {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, "\t"))
	}
	return ContentBlock{Type: BlockTable, Text: strings.Join(lines, "\n"), Data: rows}
}

// IsTable reports whether the block holds a table.
func (b ContentBlock) IsTable() bool {
	return b.Type == BlockTable
}

// TemplateHeading is a heading paragraph read from the review template.
type TemplateHeading struct {
	Style string `json:"style" yaml:"style" msgpack:"style"` // e.g. "Heading 1"
	Text  string `json:"text" yaml:"text" msgpack:"text"`
}

// DocumentInfo holds key metadata pulled from the document text.
type DocumentInfo struct {
	Title     string   `json:"title" msgpack:"title"`
	Version   string   `json:"version" msgpack:"version"`
	Date      string   `json:"date" msgpack:"date"`
	Authors   []string `json:"authors" msgpack:"authors"`
	Status    string   `json:"status" msgpack:"status"`
	Summary   string   `json:"summary" msgpack:"summary"`
	KeyPoints []string `json:"keyPoints" msgpack:"keyPoints"`
}
