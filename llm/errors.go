// Upstream error taxonomy shared by all providers.
//
// Information Hiding:
// - SDK-specific error types are classified here, behind one kind enum
// - Callers decide retry behavior from the kind, never from SDK types

package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an upstream provider failure.
type ErrorKind string

const (
	// KindRateLimited is a provider 429. Retryable.
	KindRateLimited ErrorKind = "rate_limited"
	// KindInternal is a provider 500. Retryable.
	KindInternal ErrorKind = "upstream_internal_error"
	// KindUnavailable is a provider 503. Retryable.
	KindUnavailable ErrorKind = "service_unavailable"
	// KindAuthentication is a provider 401/403. Never retried.
	KindAuthentication ErrorKind = "authentication_error"
	// KindBadRequest is a provider 400/404/422. Never retried.
	KindBadRequest ErrorKind = "bad_request"
	// KindUnknown is any failure that could not be classified. Never retried.
	KindUnknown ErrorKind = "unknown_error"
)

// UpstreamError is a classified failure from an LLM provider.
type UpstreamError struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: provider rate
// limiting, internal errors and unavailability may succeed on a later
// attempt; everything else is fatal.
func (e *UpstreamError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindInternal, KindUnavailable:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable upstream failure.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Retryable()
}

// classifyStatus maps an HTTP status from a provider to an error kind.
func classifyStatus(status int) ErrorKind {
	switch status {
	case 429:
		return KindRateLimited
	case 500:
		return KindInternal
	case 502, 503, 529:
		return KindUnavailable
	case 401, 403:
		return KindAuthentication
	case 400, 404, 422:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

func upstreamError(provider string, status int, err error) *UpstreamError {
	return &UpstreamError{
		Kind:     classifyStatus(status),
		Provider: provider,
		Status:   status,
		Err:      err,
	}
}
