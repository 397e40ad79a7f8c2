package reviewer

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultOllamaModel = "mistral"
	DefaultOllamaURL   = "http://localhost:11434"
)

// LangChain drives any langchaingo model with a system and a human message.
type LangChain struct {
	name string
	llm  llms.Model
	opts Options
}

func NewLangChain(name string, llm llms.Model, opts Options) *LangChain {
	return &LangChain{name: name, llm: llm, opts: opts.withDefaults(opts.Model)}
}

// NewOpenAI needs an API key; baseURL may point at any compatible endpoint.
func NewOpenAI(apiKey, baseURL string, opts Options) (*LangChain, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key is not set", ErrProviderUnavailable)
	}
	opts = opts.withDefaults(DefaultOpenAIModel)

	clientOpts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(opts.Model)}
	if baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return NewLangChain("openai", llm, opts), nil
}

func NewOllama(serverURL string, opts Options) (*LangChain, error) {
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}
	opts = opts.withDefaults(DefaultOllamaModel)

	llm, err := ollama.New(ollama.WithModel(opts.Model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return NewLangChain("ollama", llm, opts), nil
}

func (l *LangChain) Name() string  { return l.name }
func (l *LangChain) Model() string { return l.opts.Model }

func (l *LangChain) Request(system, user string, maxTokens int) Request {
	if maxTokens <= 0 {
		maxTokens = l.opts.MaxTokens
	}
	return Request{
		"model":       l.opts.Model,
		"max_tokens":  maxTokens,
		"temperature": *l.opts.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
}

func (l *LangChain) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if user == "" {
		return "", ErrEmptyPrompt
	}
	if maxTokens <= 0 {
		maxTokens = l.opts.MaxTokens
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, user),
	}

	resp, err := l.llm.GenerateContent(ctx, content,
		llms.WithTemperature(*l.opts.Temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%s chat error: %w", l.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("%w: no response from %s", ErrResponseInvalid, l.name)
	}
	return resp.Choices[0].Content, nil
}
