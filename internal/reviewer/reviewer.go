// Package reviewer sends review prompts to an AI model and parses the
// structured verdict it returns.
package reviewer

import (
	"context"
	"errors"
	"fmt"

	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/prompt"
)

var (
	ErrEmptyPrompt         = errors.New("empty prompt")
	ErrResponseInvalid     = errors.New("model response is not a valid review")
	ErrProviderUnavailable = errors.New("review provider unavailable")
)

// Defaults shared by all providers.
const (
	DefaultMaxTokens      = 1500
	DefaultChunkMaxTokens = 500
	DefaultTemperature    = 0.7
)

// Request is the provider request body, kept so the UI can show exactly
// what was sent.
type Request map[string]any

// Options tune a single completion. A nil Temperature means
// DefaultTemperature; zero is a valid setting.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

func (o Options) withDefaults(model string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	return o
}

// Completer is one AI backend: a system and a user message in, text out.
type Completer interface {
	Name() string
	Model() string
	// Request returns the body Complete would send for these messages.
	// maxTokens <= 0 uses the completer's configured limit.
	Request(system, user string, maxTokens int) Request
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Reviewer reviews a rendered document prompt.
type Reviewer interface {
	Name() string
	Model() string
	// Review always returns a review. A provider failure is reported both in
	// the error and in the review's overall comment.
	Review(ctx context.Context, prompt string) (Request, *models.AIReview, error)
}

// Service is the Reviewer built on top of a Completer.
type Service struct {
	completer Completer
}

func NewService(c Completer) *Service {
	return &Service{completer: c}
}

func (s *Service) Name() string  { return s.completer.Name() }
func (s *Service) Model() string { return s.completer.Model() }

// Completer exposes the backend, used for chunk annotations.
func (s *Service) Completer() Completer { return s.completer }

func (s *Service) Review(ctx context.Context, userPrompt string) (Request, *models.AIReview, error) {
	if userPrompt == "" {
		fmt.Printf("[Reviewer %s] Empty prompt received\n", s.Name())
		return Request{"messages": []any{}}, &models.AIReview{Sections: []models.SectionFeedback{}}, nil
	}

	req := s.completer.Request(prompt.SystemPrompt, userPrompt, 0)
	fmt.Printf("[Reviewer %s] Sending review request: model=%s, promptChars=%d\n", s.Name(), s.Model(), len(userPrompt))

	text, err := s.completer.Complete(ctx, prompt.SystemPrompt, userPrompt, 0)
	if err != nil {
		fmt.Printf("[Reviewer %s] ERROR in document review: %v\n", s.Name(), err)
		return req, ErrorReview(err), err
	}

	review, err := ParseResponse(text)
	if err != nil {
		fmt.Printf("[Reviewer %s] Could not extract JSON from response: %v\n", s.Name(), err)
	}
	return req, review, nil
}

// ErrorReview is the review reported when the provider call fails.
func ErrorReview(err error) *models.AIReview {
	return &models.AIReview{
		OverallComment: fmt.Sprintf("Error during review: %v", err),
		Sections:       []models.SectionFeedback{},
	}
}
