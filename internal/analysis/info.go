package analysis

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/techspec-reviewer/backend/internal/models"
)

var (
	versionPattern = regexp.MustCompile(`(?i)version\s*:?-?\s*(\d+\.\d+(\.\d+)?)`)
	datePattern    = regexp.MustCompile(`(?i)date\s*:?-?\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\w+\s+\d{1,2},?\s+\d{4})`)
	authorPattern  = regexp.MustCompile(`(?i)^(author|by|prepared by)\s*:?-?\s*(.+)`)
	statusPattern  = regexp.MustCompile(`(?i)^status\s*:?-?\s*(.+)`)
	summaryStart   = regexp.MustCompile(`(?i)(executive summary|introduction|overview)`)
	summaryStop    = regexp.MustCompile(`^(\d+\.|[A-Z][a-z]+\s+\d+)`)
	bulletPrefix   = regexp.MustCompile(`^[•\-\*]\s+`)
	numberedPrefix = regexp.MustCompile(`^\d+\.\s+`)
)

const (
	titleScanLimit  = 10
	minKeyPointSize = 10
)

// ExtractDocumentInfo pulls title, version, date, authors, status, summary
// and key points out of the paragraph text. Tables are ignored.
func ExtractDocumentInfo(blocks []models.ContentBlock) models.DocumentInfo {
	info := models.DocumentInfo{
		Authors:   []string{},
		KeyPoints: []string{},
	}

	var lines []string
	for _, b := range blocks {
		if b.IsTable() {
			continue
		}
		if line := strings.TrimSpace(b.Text); line != "" {
			lines = append(lines, line)
		}
	}

	for i, line := range lines {
		if i >= titleScanLimit {
			break
		}
		if looksLikeTitle(line) {
			info.Title = line
			break
		}
	}

	for _, line := range lines {
		if m := versionPattern.FindStringSubmatch(line); m != nil {
			info.Version = m[1]
		}
		if m := datePattern.FindStringSubmatch(line); m != nil {
			info.Date = m[1]
		}
		if m := authorPattern.FindStringSubmatch(line); m != nil {
			for _, a := range strings.Split(m[2], ",") {
				if a = strings.TrimSpace(a); len([]rune(a)) > 1 {
					info.Authors = append(info.Authors, a)
				}
			}
		}
		if m := statusPattern.FindStringSubmatch(line); m != nil {
			info.Status = strings.TrimSpace(m[1])
		}
	}

	info.Summary = extractSummary(lines)

	for _, line := range lines {
		if !bulletPrefix.MatchString(line) && !numberedPrefix.MatchString(line) {
			continue
		}
		point := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		point = strings.TrimSpace(numberedPrefix.ReplaceAllString(point, ""))
		if len([]rune(point)) > minKeyPointSize {
			info.KeyPoints = append(info.KeyPoints, point)
		}
	}

	return info
}

func extractSummary(lines []string) string {
	var sb strings.Builder
	inSummary := false
	for _, line := range lines {
		if summaryStart.MatchString(line) {
			inSummary = true
			continue
		}
		if !inSummary {
			continue
		}
		if summaryStop.MatchString(line) {
			break
		}
		sb.WriteString(line)
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String())
}

// looksLikeTitle: longer than 3 characters, not shouting, and no digit
// among the first 8 characters.
func looksLikeTitle(line string) bool {
	runes := []rune(line)
	if len(runes) <= 3 || isAllUpper(line) {
		return false
	}
	head := runes
	if len(head) > 8 {
		head = head[:8]
	}
	for _, r := range head {
		if unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isAllUpper is true when the line has cased letters and none are lowercase.
func isAllUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
