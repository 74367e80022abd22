// Package llm provides shared data models for LLM providers.
package llm

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}

// StreamEventType identifies the kind of a streaming event.
type StreamEventType string

const (
	// StreamEventStart signals that the upstream model has begun a response.
	StreamEventStart StreamEventType = "start"
	// StreamEventText carries an incremental text fragment.
	StreamEventText StreamEventType = "text"
	// StreamEventStop signals that the response is complete.
	StreamEventStop StreamEventType = "stop"
)

// StreamEvent is a single event from a streaming chat completion.
// Providers emit exactly one start event, zero or more text events in
// arrival order, and exactly one stop event on success.
type StreamEvent struct {
	Type StreamEventType
	Text string
}
