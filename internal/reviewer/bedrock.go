package reviewer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/aws/aws-sdk-go/service/bedrockruntime/bedrockruntimeiface"
)

const (
	DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	bedrockAPIVersion   = "bedrock-2023-05-31"
)

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Bedrock calls Anthropic models through AWS Bedrock InvokeModel.
type Bedrock struct {
	svc  bedrockruntimeiface.BedrockRuntimeAPI
	opts Options
}

// NewBedrock builds a client from an AWS session. Retries come from the
// session's MaxRetries.
func NewBedrock(sess client.ConfigProvider, opts Options) *Bedrock {
	return NewBedrockWithClient(bedrockruntime.New(sess), opts)
}

func NewBedrockWithClient(svc bedrockruntimeiface.BedrockRuntimeAPI, opts Options) *Bedrock {
	return &Bedrock{svc: svc, opts: opts.withDefaults(DefaultBedrockModel)}
}

func (b *Bedrock) Name() string  { return "bedrock" }
func (b *Bedrock) Model() string { return b.opts.Model }

func (b *Bedrock) Request(system, user string, maxTokens int) Request {
	if maxTokens <= 0 {
		maxTokens = b.opts.MaxTokens
	}
	return Request{
		"anthropic_version": bedrockAPIVersion,
		"max_tokens":        maxTokens,
		"temperature":       *b.opts.Temperature,
		"system":            system,
		"messages": []map[string]any{
			{"role": "user", "content": user},
		},
	}
}

func (b *Bedrock) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if user == "" {
		return "", ErrEmptyPrompt
	}

	body, err := json.Marshal(b.Request(system, user, maxTokens))
	if err != nil {
		return "", fmt.Errorf("encoding bedrock request: %w", err)
	}

	out, err := b.svc.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.opts.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoking %s: %w", b.opts.Model, err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("%w: decoding bedrock body: %v", ErrResponseInvalid, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: bedrock returned no content", ErrResponseInvalid)
	}
	return resp.Content[0].Text, nil
}
