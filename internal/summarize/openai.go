package summarize

import (
	"context"
	stderrors "errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hpungsan/ocrdesk/internal/config"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider validates baseURL and builds a client.
func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if err := config.ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Name() string { return config.ProviderOpenAI }

func (p *OpenAIProvider) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", &StatusError{Provider: p.Name(), Status: 502, Err: fmt.Errorf("response has no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAI attaches the HTTP status from SDK errors.
func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return &StatusError{Provider: config.ProviderOpenAI, Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return &StatusError{Provider: config.ProviderOpenAI, Status: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
