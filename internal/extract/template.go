package extract

import (
	"bytes"
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

// TemplateHeadings returns the heading paragraphs of a template document,
// in document order. Empty headings are skipped.
func TemplateHeadings(doc *DOCXDocument) []models.TemplateHeading {
	var headings []models.TemplateHeading
	for _, p := range doc.Paragraphs {
		if !strings.HasPrefix(p.Style, "Heading") {
			continue
		}
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		headings = append(headings, models.TemplateHeading{Style: p.Style, Text: text})
	}
	return headings
}

// ParseTemplate parses a .docx template held in memory.
func ParseTemplate(data []byte) (*DOCXDocument, error) {
	return ParseDOCX(bytes.NewReader(data), int64(len(data)))
}

// TemplateParagraphs returns the non-empty paragraph texts of a template.
func TemplateParagraphs(doc *DOCXDocument) []string {
	var lines []string
	for _, p := range doc.Paragraphs {
		if strings.TrimSpace(p.Text) != "" {
			lines = append(lines, p.Text)
		}
	}
	return lines
}
