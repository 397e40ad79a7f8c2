package reviewer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/techspec-reviewer/backend/internal/models"
)

type rawSection struct {
	Header      any `json:"header"`
	Score       any `json:"score"`
	Comment     any `json:"comment"`
	Suggestions any `json:"suggestions"`
}

type rawReview struct {
	OverallScore   any          `json:"overall_score"`
	OverallComment any          `json:"overall_comment"`
	Sections       []rawSection `json:"sections"`
}

// ParseResponse decodes the model's reply. When the reply is not pure JSON
// it retries with the span between the first '{' and the last '}'. When
// neither decodes, the whole text becomes the overall comment and
// ErrResponseInvalid is returned alongside.
func ParseResponse(text string) (*models.AIReview, error) {
	if r, ok := decodeReview(text); ok {
		return r, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if r, ok := decodeReview(text[start : end+1]); ok {
			return r, nil
		}
	}

	return &models.AIReview{
		OverallComment: text,
		Sections:       []models.SectionFeedback{},
	}, fmt.Errorf("%w: %d characters", ErrResponseInvalid, len(text))
}

func decodeReview(text string) (*models.AIReview, bool) {
	var raw rawReview
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}

	review := &models.AIReview{
		OverallScore:   toScore(raw.OverallScore),
		OverallComment: toText(raw.OverallComment),
		Sections:       make([]models.SectionFeedback, 0, len(raw.Sections)),
	}
	for _, s := range raw.Sections {
		review.Sections = append(review.Sections, models.SectionFeedback{
			Header:      toText(s.Header),
			Score:       toScore(s.Score),
			Comment:     toText(s.Comment),
			Suggestions: toText(s.Suggestions),
		})
	}
	return review, true
}

// toScore accepts numbers and numeric strings; anything else is no score.
func toScore(v any) *int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func toText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, toText(p))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(x)
	}
}
