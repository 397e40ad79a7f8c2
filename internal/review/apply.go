// Package review runs the upload-to-annotations pipeline and tracks review
// sessions.
package review

import (
	"fmt"
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

// Apply copies the AI verdict onto the structure. Section feedback is matched
// by exact header; sections without feedback keep their nil values.
func Apply(s *models.DocumentStructure, r *models.AIReview) {
	if s == nil || r == nil {
		return
	}
	s.OverallScore = r.OverallScore
	s.OverallComment = r.OverallComment

	feedback := make(map[string]models.SectionFeedback, len(r.Sections))
	for _, f := range r.Sections {
		feedback[f.Header] = f
	}
	for i := range s.Sections {
		f, ok := feedback[s.Sections[i].Header]
		if !ok {
			continue
		}
		s.Sections[i].AIScore = f.Score
		s.Sections[i].AIComment = f.Comment
		s.Sections[i].AISuggestions = f.Suggestions
	}
}

// Annotate turns the structure's statuses and AI feedback into annotations.
// The overall comment comes first as a document-level summary.
func Annotate(s *models.DocumentStructure) []models.Annotation {
	anns := make([]models.Annotation, 0, len(s.Sections)+1)

	if c := strings.TrimSpace(s.OverallComment); c != "" {
		comment := c
		if s.OverallScore != nil {
			comment = fmt.Sprintf("Overall score %d/10. %s", *s.OverallScore, c)
		}
		anns = append(anns, models.Annotation{
			Position: -1,
			Comment:  comment,
			Severity: models.SeverityInfo,
			Category: "summary",
		})
	}

	for _, sec := range s.Sections {
		switch sec.Status {
		case models.SectionMissing:
			comment := "Section not found in uploaded document."
			if sec.Position >= 0 {
				comment = "Section heading is present but the section is empty."
			}
			anns = append(anns, sectionAnnotation(sec, comment, models.SeverityError, "missing"))
		case models.SectionBoilerplate:
			anns = append(anns, sectionAnnotation(sec,
				"Section is empty or appears to be copy-pasted from the template.",
				models.SeverityError, "boilerplate"))
		}

		if sec.Mandatory && sec.Status != models.SectionPresent {
			anns = append(anns, sectionAnnotation(sec,
				fmt.Sprintf("Mandatory section %s is missing.", sec.Header),
				models.SeverityError, "mandatory"))
		}

		if sec.AIScore != nil || sec.AIComment != "" {
			anns = append(anns, sectionAnnotation(sec, feedbackComment(sec), scoreSeverity(sec.AIScore), "review"))
		}
	}
	return anns
}

func sectionAnnotation(sec models.SectionContent, comment string, sev models.Severity, category string) models.Annotation {
	return models.Annotation{
		Position: sec.Position,
		Section:  sec.Header,
		Comment:  comment,
		Severity: sev,
		Category: category,
	}
}

func feedbackComment(sec models.SectionContent) string {
	var sb strings.Builder
	if sec.AIScore != nil {
		fmt.Fprintf(&sb, "Score %d/5.", *sec.AIScore)
	}
	if c := strings.TrimSpace(sec.AIComment); c != "" {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(c)
	}
	if sug := strings.TrimSpace(sec.AISuggestions); sug != "" {
		sb.WriteString("\nSuggestions: ")
		sb.WriteString(sug)
	}
	return sb.String()
}

// scoreSeverity: 1-2 error, 3 warning, 4-5 info. No score is info.
func scoreSeverity(score *int) models.Severity {
	switch {
	case score == nil:
		return models.SeverityInfo
	case *score <= 2:
		return models.SeverityError
	case *score == 3:
		return models.SeverityWarning
	}
	return models.SeverityInfo
}
