// Package analysis splits extracted documents into template sections and
// pulls document metadata out of the text.
package analysis

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/techspec-reviewer/backend/internal/models"
)

// minCopiedLength is the shortest section text treated as a template excerpt.
const minCopiedLength = 20

type headingHit struct {
	index   int
	heading string
}

// headingTexts returns the trimmed heading texts in template order.
func headingTexts(headings []models.TemplateHeading) []string {
	texts := make([]string, 0, len(headings))
	for _, h := range headings {
		texts = append(texts, strings.TrimSpace(h.Text))
	}
	return texts
}

// findHeadings returns every line that matches a heading, ordered by position.
func findHeadings(lines []string, skip func(i int) bool, headings []string) []headingHit {
	var hits []headingHit
	for i, line := range lines {
		if skip != nil && skip(i) {
			continue
		}
		norm := strings.ToLower(strings.TrimSpace(line))
		for _, h := range headings {
			if norm == strings.ToLower(h) {
				hits = append(hits, headingHit{index: i, heading: h})
			}
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].index < hits[b].index })
	return hits
}

// BreakIntoSections splits blocks at heading occurrences. Each section keeps
// the non-empty paragraphs and the tables up to the next heading occurrence.
// The second result maps every found heading to the block index of the
// occurrence whose content was kept.
func BreakIntoSections(blocks []models.ContentBlock, headings []models.TemplateHeading) (map[string][]models.ContentBlock, map[string]int) {
	texts := headingTexts(headings)
	sections := make(map[string][]models.ContentBlock, len(texts))
	for _, h := range texts {
		sections[h] = []models.ContentBlock{}
	}
	found := make(map[string]int)

	lines := make([]string, len(blocks))
	for i, b := range blocks {
		lines[i] = b.Text
	}
	hits := findHeadings(lines, func(i int) bool { return blocks[i].IsTable() }, texts)

	for i, hit := range hits {
		end := len(blocks)
		if i+1 < len(hits) {
			end = hits[i+1].index
		}

		content := []models.ContentBlock{}
		for _, b := range blocks[hit.index+1 : end] {
			if b.IsTable() || strings.TrimSpace(b.Text) != "" {
				content = append(content, b)
			}
		}
		sections[hit.heading] = content
		found[hit.heading] = hit.index
	}
	return sections, found
}

// TemplateSectionContent splits the template's paragraph texts the same way.
func TemplateSectionContent(paragraphs []string, headings []models.TemplateHeading) map[string][]string {
	texts := headingTexts(headings)
	sections := make(map[string][]string, len(texts))

	var lines []string
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}

	hits := findHeadings(lines, nil, texts)
	for i, hit := range hits {
		end := len(lines)
		if i+1 < len(hits) {
			end = hits[i+1].index
		}
		sections[hit.heading] = append([]string(nil), lines[hit.index+1:end]...)
	}
	return sections
}

// IsMissingOrCopied reports whether a section is empty or reproduces the
// template's placeholder text.
func IsMissingOrCopied(section []models.ContentBlock, template []string) bool {
	if len(section) == 0 {
		return true
	}

	var docParts []string
	for _, b := range section {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		docParts = append(docParts, strings.ToLower(text))
	}
	docText := strings.Join(docParts, " ")

	var tmplParts []string
	for _, l := range template {
		if text := strings.TrimSpace(l); text != "" {
			tmplParts = append(tmplParts, strings.ToLower(text))
		}
	}
	tmplText := strings.Join(tmplParts, " ")

	if tmplText == "" || docText == "" {
		return false
	}
	if docText == tmplText {
		return true
	}
	return utf8.RuneCountInString(docText) > minCopiedLength && strings.Contains(tmplText, docText)
}
