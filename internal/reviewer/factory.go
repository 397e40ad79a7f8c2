package reviewer

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws/client"
)

// Config selects and configures a provider.
type Config struct {
	Provider          string // bedrock, openai, ollama or mock
	Model             string
	MaxTokens         int
	Temperature       *float64 // nil uses DefaultTemperature
	OpenAIKey         string
	OpenAIBaseURL     string
	OllamaURL         string
	RequestsPerMinute int
}

// New builds the configured Reviewer. sess is only needed for bedrock.
func New(cfg Config, sess client.ConfigProvider) (*Service, error) {
	opts := Options{Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}

	var (
		c   Completer
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "bedrock":
		if sess == nil {
			return nil, fmt.Errorf("%w: bedrock needs an AWS session", ErrProviderUnavailable)
		}
		c = NewBedrock(sess, opts)
	case "openai":
		c, err = NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, opts)
	case "ollama":
		c, err = NewOllama(cfg.OllamaURL, opts)
	case "mock":
		c = NewMock()
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderUnavailable, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewService(NewLimited(c, cfg.RequestsPerMinute)), nil
}
