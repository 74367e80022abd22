// LLM Provider Factory - creates providers from configuration.

package llm

import (
	"fmt"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic ProviderType = iota
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderAnthropic:
		return "anthropic"
	case ProviderOpenAI:
		return "openai"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet45
	case ProviderOpenAI:
		return ModelOpenAIGPT4o
	case ProviderDeepSeek:
		return ModelDeepSeekChat
	case ProviderGemini:
		return ModelGeminiFlash25
	default:
		return ""
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// NewProvider creates a provider of the given type. An empty model
// selects the provider's default.
func NewProvider(providerType ProviderType, apiKey, model string, maxTokens uint32, temperature float32) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: API key not set", providerType)
	}
	if model == "" {
		model = providerType.DefaultModel()
	}

	switch providerType {
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", providerType)
	}
}

// Model identifier constants for all supported providers.

// Anthropic model identifiers
const (
	// ModelAnthropicClaudeSonnet45 is Claude Sonnet 4.5: balanced default.
	ModelAnthropicClaudeSonnet45 = "claude-sonnet-4-5-20250929"
	// ModelAnthropicClaudeOpus45 is Claude Opus 4.5: strongest model.
	ModelAnthropicClaudeOpus45 = "claude-opus-4-5-20251101"
	// ModelAnthropicClaudeHaiku35 is Claude 3.5 Haiku: fast and efficient.
	ModelAnthropicClaudeHaiku35 = "claude-3-5-haiku-20241022"
)

// OpenAI model identifiers
const (
	// ModelOpenAIGPT4o is GPT-4o: flagship multimodal model.
	ModelOpenAIGPT4o = "gpt-4o"
	// ModelOpenAIGPT4oMini is GPT-4o-mini: cost-efficient model.
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
)

// DeepSeek model identifiers
const (
	// ModelDeepSeekChat is the general chat model.
	ModelDeepSeekChat = "deepseek-chat"
	// ModelDeepSeekReasoner is the chain-of-thought reasoning model.
	ModelDeepSeekReasoner = "deepseek-reasoner"
)

// Gemini model identifiers
const (
	// ModelGeminiFlash25 is Gemini 2.5 Flash: speed optimized.
	ModelGeminiFlash25 = "gemini-2.5-flash"
	// ModelGeminiPro25 is Gemini 2.5 Pro: advanced reasoning.
	ModelGeminiPro25 = "gemini-2.5-pro"
)
