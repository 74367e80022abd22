// Package chat orchestrates the message flow: admission, conversation
// mutation, context-window assembly, and the streamed upstream call.
//
// Information Hiding:
// - Refusal taxonomy and its HTTP mapping live behind the Error type
// - Pipeline step ordering hidden inside Orchestrator.SendMessage
// - Retry/stream interplay (establishment vs mid-stream) internal

package chat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/richinex/chatrelay/ratelimit"
)

// Code classifies why a chat request was refused or failed.
type Code string

const (
	// CodeValidation means the request content was rejected.
	CodeValidation Code = "validation_error"
	// CodeNotFound means no conversation exists for the session.
	CodeNotFound Code = "not_found"
	// CodeRateLimited means the session exceeded an admission window.
	CodeRateLimited Code = "rate_limit_error"
	// CodeStreamActive means a response is already streaming for the
	// session.
	CodeStreamActive Code = "stream_active"
	// CodeUpstream means the model provider failed after retries.
	CodeUpstream Code = "upstream_error"
	// CodeInternal means an unexpected server-side failure.
	CodeInternal Code = "internal_error"
)

// Error is a classified chat failure. Details carries the individual
// violations for validation errors.
type Error struct {
	Code    Code
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the code to the status the transport should answer
// with.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeStreamActive:
		return http.StatusConflict
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AsError unwraps err into a *Error if one is in the chain.
func AsError(err error) (*Error, bool) {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr, true
	}
	return nil, false
}

func validationError(violations []string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: strings.Join(violations, "; "),
		Details: violations,
	}
}

func notFoundError(sessionID string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("no conversation for session %q", sessionID),
	}
}

func rateLimitedError(reason ratelimit.Reason) *Error {
	window := "minute"
	if reason == ratelimit.ReasonHour {
		window = "hour"
	}
	return &Error{
		Code:    CodeRateLimited,
		Message: fmt.Sprintf("rate limit exceeded for the trailing %s, please wait before sending another message", window),
		Details: []string{string(reason)},
	}
}

func streamActiveError(sessionID string) *Error {
	return &Error{
		Code:    CodeStreamActive,
		Message: fmt.Sprintf("a response is already streaming for session %q", sessionID),
	}
}

func internalError(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}
