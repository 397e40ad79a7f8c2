package models

import "time"

// SectionFeedback is the AI verdict for one section.
type SectionFeedback struct {
	Header      string `json:"header" msgpack:"header"`
	Score       *int   `json:"score" msgpack:"score"`
	Comment     string `json:"comment" msgpack:"comment"`
	Suggestions string `json:"suggestions" msgpack:"suggestions"`
}

// AIReview is the structured response expected from the review model.
type AIReview struct {
	OverallScore   *int              `json:"overall_score" msgpack:"overall_score"`
	OverallComment string            `json:"overall_comment" msgpack:"overall_comment"`
	Sections       []SectionFeedback `json:"sections" msgpack:"sections"`
}

// Severity of an annotation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Annotation is a piece of commentary attached to a position in the document.
type Annotation struct {
	Position int      `json:"position" msgpack:"position"` // block index, -1 for document level
	Section  string   `json:"section,omitempty" msgpack:"section,omitempty"`
	Comment  string   `json:"comment" msgpack:"comment"`
	Severity Severity `json:"severity" msgpack:"severity"`
	Category string   `json:"category" msgpack:"category"`
}

// ReviewResult is everything produced for one reviewed document.
type ReviewResult struct {
	ReviewID    string            `json:"reviewId" msgpack:"reviewId"`
	File        FileInfo          `json:"file" msgpack:"file"`
	Info        DocumentInfo      `json:"info" msgpack:"info"`
	Headings    []TemplateHeading `json:"headings" msgpack:"headings"`
	Structure   DocumentStructure `json:"structure" msgpack:"structure"`
	Prompt      string            `json:"prompt" msgpack:"prompt"`
	Request     map[string]any    `json:"request" msgpack:"request"`
	Annotations []Annotation      `json:"annotations" msgpack:"annotations"`
	Errors      []ReviewError     `json:"errors,omitempty" msgpack:"errors,omitempty"`
	Provider    string            `json:"provider" msgpack:"provider"`
	ModelID     string            `json:"modelId,omitempty" msgpack:"modelId,omitempty"`
	ArchiveURI  string            `json:"archiveUri,omitempty" msgpack:"archiveUri,omitempty"`
	CreatedAt   time.Time         `json:"createdAt" msgpack:"createdAt"`
}
