package review

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/techspec-reviewer/backend/internal/models"
)

// ErrInvalidRules is returned for a rules document that fails validation.
var ErrInvalidRules = errors.New("invalid review rules")

// LoadRules reads a YAML rules file.
func LoadRules(path string) (*models.ReviewRules, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseRules(file)
}

// ParseRules parses YAML rules from r and validates them.
func ParseRules(r io.Reader) (*models.ReviewRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rules models.ReviewRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := ValidateRules(&rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

// ValidateRules trims headings and rejects empty or duplicate ones.
// An empty DefaultRules is filled with models.DefaultSectionRules.
func ValidateRules(rules *models.ReviewRules) error {
	seen := make(map[string]bool, len(rules.Sections))
	for i := range rules.Sections {
		h := strings.TrimSpace(rules.Sections[i].Heading)
		if h == "" {
			return fmt.Errorf("%w: section %d has no heading", ErrInvalidRules, i+1)
		}
		if seen[h] {
			return fmt.Errorf("%w: duplicate heading %q", ErrInvalidRules, h)
		}
		seen[h] = true
		rules.Sections[i].Heading = h
	}
	if strings.TrimSpace(rules.DefaultRules) == "" {
		rules.DefaultRules = models.DefaultSectionRules
	}
	return nil
}

// MarshalRules renders rules as YAML.
func MarshalRules(rules *models.ReviewRules) ([]byte, error) {
	return yaml.Marshal(rules)
}

// SaveRules writes rules to path as YAML.
func SaveRules(path string, rules *models.ReviewRules) error {
	data, err := MarshalRules(rules)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
