package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{429, KindRateLimited, true},
		{500, KindInternal, true},
		{502, KindUnavailable, true},
		{503, KindUnavailable, true},
		{529, KindUnavailable, true},
		{401, KindAuthentication, false},
		{403, KindAuthentication, false},
		{400, KindBadRequest, false},
		{404, KindBadRequest, false},
		{422, KindBadRequest, false},
		{418, KindUnknown, false},
	}

	for _, tt := range tests {
		ue := upstreamError("test", tt.status, errors.New("boom"))
		if ue.Kind != tt.kind {
			t.Errorf("status %d: expected kind %s, got %s", tt.status, tt.kind, ue.Kind)
		}
		if ue.Retryable() != tt.retryable {
			t.Errorf("status %d: expected retryable=%v", tt.status, tt.retryable)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	transient := upstreamError("test", 503, errors.New("unavailable"))
	if !IsRetryable(transient) {
		t.Error("expected 503 to be retryable")
	}

	wrapped := fmt.Errorf("stream failed: %w", transient)
	if !IsRetryable(wrapped) {
		t.Error("expected wrapped transient error to be retryable")
	}

	fatal := upstreamError("test", 401, errors.New("bad key"))
	if IsRetryable(fatal) {
		t.Error("expected 401 to be fatal")
	}

	if IsRetryable(errors.New("plain")) {
		t.Error("expected unclassified error to be fatal")
	}
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	ue := upstreamError("test", 500, cause)
	if !errors.Is(ue, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		input string
		want  ProviderType
	}{
		{"anthropic", ProviderAnthropic},
		{"Claude", ProviderAnthropic},
		{"openai", ProviderOpenAI},
		{"GPT", ProviderOpenAI},
		{"deepseek", ProviderDeepSeek},
		{"google", ProviderGemini},
	}

	for _, tt := range tests {
		got, err := ParseProviderType(tt.input)
		if err != nil {
			t.Fatalf("ParseProviderType(%q) failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := ParseProviderType("llama"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
