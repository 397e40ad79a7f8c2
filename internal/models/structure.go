package models

// SectionStatus describes how a template section appears in the uploaded document.
type SectionStatus string

const (
	SectionPresent     SectionStatus = "present"
	SectionMissing     SectionStatus = "missing"
	SectionBoilerplate SectionStatus = "boilerplate"
)

// SectionContent is one template section of the reviewed document plus AI feedback.
type SectionContent struct {
	Header        string         `json:"header" msgpack:"header"`
	Style         string         `json:"style,omitempty" msgpack:"style,omitempty"`
	Blocks        []ContentBlock `json:"blocks" msgpack:"blocks"`
	Status        SectionStatus  `json:"status" msgpack:"status"`
	Position      int            `json:"position" msgpack:"position"` // block index of the heading, -1 if not found
	Mandatory     bool           `json:"mandatory,omitempty" msgpack:"mandatory,omitempty"`
	AIScore       *int           `json:"aiScore,omitempty" msgpack:"aiScore,omitempty"`
	AIComment     string         `json:"aiComment,omitempty" msgpack:"aiComment,omitempty"`
	AISuggestions string         `json:"aiSuggestions,omitempty" msgpack:"aiSuggestions,omitempty"`
}

// DocumentStructure is the document broken into template sections.
type DocumentStructure struct {
	Sections       []SectionContent `json:"sections" msgpack:"sections"`
	OverallScore   *int             `json:"overallScore,omitempty" msgpack:"overallScore,omitempty"`
	OverallComment string           `json:"overallComment,omitempty" msgpack:"overallComment,omitempty"`
}

// Section returns the section with the given header.
func (d *DocumentStructure) Section(header string) (*SectionContent, bool) {
	for i := range d.Sections {
		if d.Sections[i].Header == header {
			return &d.Sections[i], true
		}
	}
	return nil, false
}
