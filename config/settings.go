// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	Server    ServerConfig
	LLM       LLMConfig
	Chat      ChatConfig
	RateLimit RateLimitConfig
	Prune     PruneConfig
	Retry     RetryConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr      string
	StaticDir string
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// ChatConfig holds message handling configuration.
type ChatConfig struct {
	MaxContentLength int
	SystemPrompt     string
}

// RateLimitConfig holds per-session admission ceilings.
type RateLimitConfig struct {
	PerMinute int
	PerHour   int
}

// PruneConfig holds context-window ceilings.
type PruneConfig struct {
	MaxMessages int
	MaxTokens   int
}

// RetryConfig holds upstream retry parameters.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929", "ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified provider, loading values from environment variables.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	maxContentLength, err := getEnvInt("MESSAGE_MAX_LENGTH", 100000)
	if err != nil {
		return Settings{}, err
	}

	perMinute, err := getEnvInt("RATE_LIMIT_PER_MINUTE", 50)
	if err != nil {
		return Settings{}, err
	}

	perHour, err := getEnvInt("RATE_LIMIT_PER_HOUR", 1000)
	if err != nil {
		return Settings{}, err
	}

	maxMessages, err := getEnvInt("PRUNE_MAX_MESSAGES", 100)
	if err != nil {
		return Settings{}, err
	}

	maxWindowTokens, err := getEnvInt("PRUNE_MAX_TOKENS", 150000)
	if err != nil {
		return Settings{}, err
	}

	maxRetries, err := getEnvInt("RETRY_MAX_RETRIES", 3)
	if err != nil {
		return Settings{}, err
	}

	baseDelay, err := getEnvDuration("RETRY_BASE_DELAY", time.Second)
	if err != nil {
		return Settings{}, err
	}

	maxDelay, err := getEnvDuration("RETRY_MAX_DELAY", 10*time.Second)
	if err != nil {
		return Settings{}, err
	}

	addr := os.Getenv("CHAT_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	// Get model from environment or use default
	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	return Settings{
		Server: ServerConfig{
			Addr:      addr,
			StaticDir: os.Getenv("STATIC_DIR"),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Chat: ChatConfig{
			MaxContentLength: maxContentLength,
			SystemPrompt:     os.Getenv("SYSTEM_PROMPT"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: perMinute,
			PerHour:   perHour,
		},
		Prune: PruneConfig{
			MaxMessages: maxMessages,
			MaxTokens:   maxWindowTokens,
		},
		Retry: RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  baseDelay,
			MaxDelay:   maxDelay,
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	u, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(u), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
