// Package prompt renders a document structure into the review prompt.
package prompt

import (
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

// DefaultContext frames the reviewer's role.
const DefaultContext = "You are an expert technical reviewer. You are reviewing a technical specification document. " +
	"The document describes a solution to a specific problem or requirement."

// DefaultRules is the per-section and overall scoring guidance.
const DefaultRules = "- For each section:\n" +
	"    - Carefully read the content.\n" +
	"    - Score the section from 1 to 5 based on clarity, completeness, and relevance to the technical solution.\n" +
	"    - If the section is missing or irrelevant, score it as 1 and explain why.\n" +
	"    - If the section is copy-pasted boilerplate, score it as 1 and explain why.\n" +
	"    - Provide a brief justification for the score.\n" +
	"- After reviewing all sections:\n" +
	"    - Consider the overall solution described in the document.\n" +
	"    - Score the entire technical specification from 1 to 10 based on the quality, feasibility, and completeness of the solution provided.\n" +
	"    - Provide a summary justification for the overall score."

// SystemPrompt asks the model for a bare JSON object.
const SystemPrompt = "You are a technical specification reviewer. " +
	"Return ONLY a valid JSON object with the following structure. " +
	"Do not include any explanation or extra text outside the JSON.\n" +
	"Example:\n" +
	"{\n" +
	"  \"overall_score\": 8,\n" +
	"  \"overall_comment\": \"The document is well-structured.\",\n" +
	"  \"sections\": [\n" +
	"    {\n" +
	"      \"header\": \"Introduction\",\n" +
	"      \"score\": 5,\n" +
	"      \"comment\": \"Clear and complete.\",\n" +
	"      \"suggestions\": \"\"\n" +
	"    },\n" +
	"    {\n" +
	"      \"header\": \"System Requirements\",\n" +
	"      \"score\": 3,\n" +
	"      \"comment\": \"Missing details on memory requirements.\",\n" +
	"      \"suggestions\": \"Add more details on hardware.\"\n" +
	"    }\n" +
	"  ]\n" +
	"}\n"

// ChunkSystemPrompt is used for free-text chunk annotations.
const ChunkSystemPrompt = "You are a technical specification reviewer. Review the following text and provide annotations. " +
	"Focus on clarity, completeness, and technical accuracy."

// Build renders the review prompt. Empty context or rules fall back to the
// defaults, or to the values carried by sectionRules when set.
func Build(s *models.DocumentStructure, context, rules string, sectionRules *models.ReviewRules) string {
	if context == "" && sectionRules != nil {
		context = sectionRules.Context
	}
	if context == "" {
		context = DefaultContext
	}
	if rules == "" {
		rules = DefaultRules
	}

	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString(rules)
	sb.WriteString("\n\nData:\n")

	if s == nil {
		return sb.String()
	}
	for _, sec := range s.Sections {
		writeSection(&sb, sec, sectionRules)
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, sec models.SectionContent, sectionRules *models.ReviewRules) {
	sb.WriteString("---\nSection: ")
	sb.WriteString(sec.Header)
	sb.WriteString("\n")

	if sec.Mandatory {
		sb.WriteString("Mandatory: yes\n")
	}
	if rule := sectionRule(sec.Header, sectionRules); rule != "" {
		sb.WriteString("Rules: ")
		sb.WriteString(rule)
		sb.WriteString("\n")
	}

	sb.WriteString("Content:\n")
	for _, b := range sec.Blocks {
		if b.IsTable() {
			sb.WriteString("Table:\n")
		}
		sb.WriteString(b.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("---\n")
}

// sectionRule is the section's own rule, or the configured default.
func sectionRule(header string, rules *models.ReviewRules) string {
	if rules == nil {
		return ""
	}
	if r, ok := rules.RuleFor(header); ok && strings.TrimSpace(r.Rules) != "" {
		return r.Rules
	}
	return strings.TrimSpace(rules.DefaultRules)
}
