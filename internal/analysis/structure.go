package analysis

import (
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

// BuildStructure arranges the document into one section per template heading,
// in template order. templateSections holds the template's own placeholder
// text per heading and may be nil.
func BuildStructure(blocks []models.ContentBlock, headings []models.TemplateHeading, templateSections map[string][]string, rules *models.ReviewRules) *models.DocumentStructure {
	sections, found := BreakIntoSections(blocks, headings)
	mandatory := rules.Mandatory()

	out := &models.DocumentStructure{Sections: make([]models.SectionContent, 0, len(headings))}
	for _, h := range headings {
		header := strings.TrimSpace(h.Text)
		content := sections[header]

		sc := models.SectionContent{
			Header:    header,
			Style:     h.Style,
			Blocks:    content,
			Status:    models.SectionPresent,
			Position:  -1,
			Mandatory: mandatory[header],
		}

		pos, ok := found[header]
		switch {
		case !ok:
			sc.Status = models.SectionMissing
		case len(content) == 0:
			sc.Status = models.SectionMissing
			sc.Position = pos
		case IsMissingOrCopied(content, templateSections[header]):
			sc.Status = models.SectionBoilerplate
			sc.Position = pos
		default:
			sc.Position = pos
		}
		out.Sections = append(out.Sections, sc)
	}
	return out
}

// SectionTexts flattens a structure's blocks into plain text paragraphs.
func SectionTexts(s *models.DocumentStructure) []string {
	var texts []string
	for _, sec := range s.Sections {
		if len(sec.Blocks) == 0 {
			continue
		}
		texts = append(texts, sec.Header)
		for _, b := range sec.Blocks {
			texts = append(texts, b.Text)
		}
	}
	return texts
}
