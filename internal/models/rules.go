package models

// ReviewRules defines the YAML configuration for how sections are reviewed.
type ReviewRules struct {
	Context      string        `json:"context,omitempty" yaml:"context,omitempty"`
	DefaultRules string        `json:"defaultRules" yaml:"default_rules"`
	Sections     []SectionRule `json:"sections" yaml:"sections"`
}

// SectionRule configures a single template section.
type SectionRule struct {
	Heading   string `json:"heading" yaml:"heading"`
	Mandatory bool   `json:"mandatory" yaml:"mandatory"`
	Rules     string `json:"rules,omitempty" yaml:"rules,omitempty"` // empty falls back to DefaultRules
}

// DefaultSectionRules is applied to every section without its own rules.
const DefaultSectionRules = "Score from 1 to 5 based on:\n- Clarity and completeness\n- Technical accuracy\n- Relevance to solution"

// RuleFor returns the rule configured for heading, if any.
func (r *ReviewRules) RuleFor(heading string) (SectionRule, bool) {
	if r == nil {
		return SectionRule{}, false
	}
	for _, s := range r.Sections {
		if s.Heading == heading {
			return s, true
		}
	}
	return SectionRule{}, false
}

// Mandatory returns the set of mandatory section headings.
func (r *ReviewRules) Mandatory() map[string]bool {
	out := make(map[string]bool)
	if r == nil {
		return out
	}
	for _, s := range r.Sections {
		if s.Mandatory {
			out[s.Heading] = true
		}
	}
	return out
}

// Headings returns the configured sections as template headings, used
// when no DOCX template is loaded.
func (r *ReviewRules) Headings() []TemplateHeading {
	if r == nil {
		return nil
	}
	out := make([]TemplateHeading, 0, len(r.Sections))
	for _, s := range r.Sections {
		out = append(out, TemplateHeading{Style: "Heading 1", Text: s.Heading})
	}
	return out
}
