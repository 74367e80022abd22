// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Streaming via go-openai library

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// StreamChat streams a chat completion, emitting start/text/stop events.
// The Chat Completions API has no explicit start/stop frames, so start is
// emitted once the stream is established and stop on clean EOF.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []ChatMessage, events chan<- StreamEvent) error {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return wrapOpenAIError(p.Name(), err)
	}
	defer stream.Close()

	if err := emit(ctx, events, StreamEvent{Type: StreamEventStart}); err != nil {
		return err
	}

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return emit(ctx, events, StreamEvent{Type: StreamEventStop})
		}
		if err != nil {
			return wrapOpenAIError(p.Name(), err)
		}

		if len(response.Choices) > 0 {
			content := response.Choices[0].Delta.Content
			if content != "" {
				if err := emit(ctx, events, StreamEvent{Type: StreamEventText, Text: content}); err != nil {
					return err
				}
			}
		}
	}
}

// wrapOpenAIError classifies go-openai errors into the shared taxonomy.
// Shared with the DeepSeek provider, which speaks the same protocol.
func wrapOpenAIError(provider string, err error) error {
	var apierr *openai.APIError
	if errors.As(err, &apierr) {
		return upstreamError(provider, apierr.HTTPStatusCode, err)
	}
	return fmt.Errorf("%s stream: %w", provider, err)
}

// convertToOpenAIMessages converts our ChatMessage to openai.ChatCompletionMessage
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
