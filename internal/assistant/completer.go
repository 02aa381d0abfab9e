// Package assistant builds prompts, calls the completion service, and falls
// back to deterministic local output whenever the call cannot be used.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel = "claude-3-5-haiku-latest"

	errorMessageMissingAPIKey   = "assistant: missing completion api key"
	errorMessageCompletionCall  = "assistant: completion call"
	errorMessageEmptyCompletion = "assistant: empty completion"
)

var (
	// ErrMissingAPIKey indicates the completer was configured without credentials.
	ErrMissingAPIKey = errors.New(errorMessageMissingAPIKey)
	// ErrEmptyCompletion indicates a response without any text block.
	ErrEmptyCompletion = errors.New(errorMessageEmptyCompletion)
)

// CompletionRequest is the call shape sent to the completion service.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Completer produces free text for a prompt.
type Completer interface {
	Complete(ctx context.Context, request CompletionRequest) (string, error)
}

// AnthropicConfig configures AnthropicCompleter.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

// NewAnthropicCompleter validates configuration and builds a client without retries;
// callers fall back instead of retrying.
func NewAnthropicCompleter(config AnthropicConfig) (*AnthropicCompleter, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	modelName := strings.TrimSpace(config.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(config.BaseURL); baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(options...),
		model:  modelName,
	}, nil
}

func (completer *AnthropicCompleter) Complete(ctx context.Context, request CompletionRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(completer.model),
		MaxTokens:   request.MaxTokens,
		Temperature: anthropic.Float(request.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
	}
	if request.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: request.System}}
	}
	message, err := completer.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errorMessageCompletionCall, err)
	}
	var builder strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}
	if builder.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return builder.String(), nil
}
