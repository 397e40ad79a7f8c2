package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/techspec-reviewer/backend/internal/prompt"
)

// Mock scores sections by how much content they carry. It never leaves the
// process, so it serves offline runs and tests.
type Mock struct {
	// Err, when set, is returned by every Complete call.
	Err error

	mu    sync.Mutex
	calls int
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string  { return "mock" }
func (m *Mock) Model() string { return "mock-scorer" }

// Calls returns the number of Complete calls made so far.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Request(system, user string, maxTokens int) Request {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return Request{
		"model":      m.Model(),
		"max_tokens": maxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
}

func (m *Mock) Complete(ctx context.Context, system, user string, _ int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if user == "" {
		return "", ErrEmptyPrompt
	}

	if system == prompt.ChunkSystemPrompt {
		return fmt.Sprintf("Reviewed %d characters. No blocking issues found.", len([]rune(user))), nil
	}
	return mockReview(user)
}

type mockSection struct {
	header string
	lines  int
}

func mockReview(userPrompt string) (string, error) {
	var (
		sections  []mockSection
		current   *mockSection
		inContent bool
	)
	for _, line := range strings.Split(userPrompt, "\n") {
		switch {
		case strings.HasPrefix(line, "Section: "):
			sections = append(sections, mockSection{header: strings.TrimPrefix(line, "Section: ")})
			current = &sections[len(sections)-1]
			inContent = false
		case current == nil:
		case line == "Content:":
			inContent = true
		case line == "---":
			inContent = false
			current = nil
		case inContent && line != "Table:" && strings.TrimSpace(line) != "":
			current.lines++
		}
	}

	out := map[string]any{"sections": []map[string]any{}}
	if len(sections) == 0 {
		out["overall_score"] = nil
		out["overall_comment"] = "No sections to review."
		return marshalMock(out)
	}

	total := 0
	feedback := make([]map[string]any, 0, len(sections))
	for _, s := range sections {
		score := 1 + s.lines
		if score > 5 {
			score = 5
		}
		total += score

		comment := fmt.Sprintf("Section has %d lines of content.", s.lines)
		if s.lines == 0 {
			comment = "Section is missing or empty."
		}
		suggestions := ""
		if score < 4 {
			suggestions = "Expand this section with more detail."
		}
		feedback = append(feedback, map[string]any{
			"header":      s.header,
			"score":       score,
			"comment":     comment,
			"suggestions": suggestions,
		})
	}

	overall := int(math.Round(float64(total) * 2 / float64(len(sections))))
	if overall < 1 {
		overall = 1
	}
	out["overall_score"] = overall
	out["overall_comment"] = fmt.Sprintf("Reviewed %d sections.", len(sections))
	out["sections"] = feedback
	return marshalMock(out)
}

func marshalMock(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
