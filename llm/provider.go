// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling and status classification

package llm

import (
	"context"
)

// Provider defines the abstract interface for streaming LLM providers.
// Implementations hide provider-specific details while exposing a
// consistent event vocabulary for streamed chat completions.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// StreamChat streams a chat completion, sending events to the
	// provided channel in arrival order. The caller owns the channel;
	// providers never close it. A nil return means a stop event was
	// emitted. Failures are returned as *UpstreamError where the
	// provider surfaced an HTTP status, so callers can classify them.
	StreamChat(ctx context.Context, messages []ChatMessage, events chan<- StreamEvent) error
}
