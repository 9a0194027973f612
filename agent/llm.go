package agent

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/navigator-ai/careerflow/config"
)

// Prompt is one synthesis request.
type Prompt struct {
	System string
	User   string
}

// Completer is the language-model collaborator contract. Implementations
// must respect the context deadline.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ErrEmptyCompletion is returned when the model responds with no choices.
var ErrEmptyCompletion = errors.New("model returned no completion")

// OpenAICompleter implements Completer over the OpenAI chat API.
type OpenAICompleter struct {
	client *openai.Client
	cfg    config.LLM
}

// NewOpenAICompleter creates a completer for the configured model.
func NewOpenAICompleter(apiKey string, cfg config.LLM) *OpenAICompleter {
	return &OpenAICompleter{
		client: openai.NewClient(apiKey),
		cfg:    cfg,
	}
}

// NewOpenAICompleterWithBaseURL targets an OpenAI-compatible endpoint,
// for self-hosted or proxy deployments.
func NewOpenAICompleterWithBaseURL(apiKey, baseURL string, cfg config.LLM) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Complete runs one chat completion, bounded by the configured timeout.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessage{}
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
