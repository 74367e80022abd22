package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/chatrelay/conversation"
	"github.com/richinex/chatrelay/llm"
	"github.com/richinex/chatrelay/ratelimit"
	"github.com/richinex/chatrelay/retry"
	"github.com/richinex/chatrelay/stream"
)

// eventBufferSize decouples the upstream reader from downstream
// delivery so a slow client does not stall fragment handling.
const eventBufferSize = 64

// Streamer is the upstream surface the orchestrator needs. Satisfied
// by llm.Provider.
type Streamer interface {
	Name() string
	Model() string
	StreamChat(ctx context.Context, messages []llm.ChatMessage, events chan<- llm.StreamEvent) error
}

// Config wires the orchestrator's collaborators. Zero-value fields
// get sensible defaults in New.
type Config struct {
	Provider         Streamer
	Manager          *conversation.Manager
	Pruner           *conversation.Pruner
	Limiter          *ratelimit.Limiter
	Registry         *stream.Registry
	Retry            *retry.Policy
	MaxContentLength int
	SystemPrompt     string
	Logger           *zap.Logger
}

// Orchestrator runs the full message pipeline: admission, conversation
// mutation, context-window assembly, and the retried upstream stream.
type Orchestrator struct {
	provider         Streamer
	manager          *conversation.Manager
	pruner           *conversation.Pruner
	limiter          *ratelimit.Limiter
	registry         *stream.Registry
	retry            *retry.Policy
	maxContentLength int
	systemPrompt     string
	logger           *zap.Logger
}

// New builds an Orchestrator from cfg. Provider is required; every
// other collaborator defaults to its package default when nil.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("chat: provider is required")
	}
	if cfg.Manager == nil {
		cfg.Manager = conversation.NewManager(conversation.NewStore())
	}
	if cfg.Pruner == nil {
		cfg.Pruner = conversation.NewPruner(nil, 0, 0)
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(0, 0)
	}
	if cfg.Registry == nil {
		cfg.Registry = stream.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.New(retry.DefaultMaxRetries, retry.DefaultBaseDelay, retry.DefaultMaxDelay, llm.IsRetryable, cfg.Logger)
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = conversation.DefaultMaxContentLength
	}
	return &Orchestrator{
		provider:         cfg.Provider,
		manager:          cfg.Manager,
		pruner:           cfg.Pruner,
		limiter:          cfg.Limiter,
		registry:         cfg.Registry,
		retry:            cfg.Retry,
		maxContentLength: cfg.MaxContentLength,
		systemPrompt:     cfg.SystemPrompt,
		logger:           cfg.Logger,
	}, nil
}

// SendMessage runs the pipeline for one user message and returns the
// channel of downstream events. The channel is closed when the stream
// reaches a terminal state or ctx ends. A non-nil error means the
// request was refused before any state changed, except that a rate
// admission precedes the active-stream check and is consumed either
// way.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, content string) (<-chan stream.Event, error) {
	sanitized := conversation.Sanitize(content)

	violations := conversation.ValidateContent(sanitized, o.maxContentLength).Errors
	if strings.TrimSpace(sessionID) == "" {
		violations = append([]string{"sessionId is required"}, violations...)
	}
	if len(violations) > 0 {
		return nil, validationError(violations)
	}

	if result := o.limiter.Admit(sessionID); !result.Allowed {
		o.logger.Info("message denied by rate limiter",
			zap.String("session_id", sessionID),
			zap.String("reason", string(result.Reason)))
		return nil, rateLimitedError(result.Reason)
	}

	out := make(chan stream.Event, eventBufferSize)
	session, err := o.registry.Begin(sessionID, out)
	if err != nil {
		if errors.Is(err, stream.ErrActive) {
			return nil, streamActiveError(sessionID)
		}
		return nil, internalError(err)
	}

	o.manager.CreateConversation(sessionID)
	if _, err := o.manager.AddMessage(sessionID, conversation.RoleUser, sanitized); err != nil {
		o.registry.Release(sessionID)
		return nil, internalError(err)
	}

	window := o.buildWindow(sessionID)

	go o.run(ctx, session, sessionID, window, out)

	return out, nil
}

// buildWindow assembles the outbound context: stored history shaped by
// the pruner, with the system prompt prepended. Stored history is not
// modified.
func (o *Orchestrator) buildWindow(sessionID string) []llm.ChatMessage {
	history := o.pruner.Prune(o.manager.GetMessages(sessionID))

	window := make([]llm.ChatMessage, 0, len(history)+1)
	if o.systemPrompt != "" {
		window = append(window, llm.SystemMessage(o.systemPrompt))
	}
	for _, msg := range history {
		switch msg.Role {
		case conversation.RoleAssistant:
			window = append(window, llm.AssistantMessage(msg.Content))
		default:
			window = append(window, llm.UserMessage(msg.Content))
		}
	}
	return window
}

// run drives the upstream stream to a terminal state and persists the
// response on success. It owns the downstream channel and the registry
// reservation.
func (o *Orchestrator) run(ctx context.Context, session *stream.Session, sessionID string, window []llm.ChatMessage, out chan stream.Event) {
	defer close(out)
	defer o.registry.Release(sessionID)

	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("provider", o.provider.Name()),
		zap.String("model", o.provider.Model()),
	}

	err := o.retry.Execute(ctx, func() error {
		return o.streamOnce(ctx, session, window)
	}, fields...)

	if err != nil {
		o.logger.Error("stream failed", append(fields, zap.Error(err))...)
		session.Fail(ctx, err)
		return
	}
	if session.State() != stream.StateCompleted {
		err := fmt.Errorf("stream ended without a stop event")
		o.logger.Error("stream failed", append(fields, zap.Error(err))...)
		session.Fail(ctx, err)
		return
	}

	text := session.Buffer()
	if text == "" {
		o.logger.Warn("completed stream produced no text, nothing persisted", fields...)
		return
	}
	if _, err := o.manager.AddMessage(sessionID, conversation.RoleAssistant, text); err != nil {
		o.logger.Error("failed to persist assistant message", append(fields, zap.Error(err))...)
	}
}

// streamOnce performs a single upstream attempt. Errors before the
// first event surface unchanged so the retry classifier can see them;
// once any event has arrived a failure is wrapped so it is never
// retried.
func (o *Orchestrator) streamOnce(ctx context.Context, session *stream.Session, window []llm.ChatMessage) error {
	events := make(chan llm.StreamEvent, eventBufferSize)
	result := make(chan error, 1)

	go func() {
		result <- o.provider.StreamChat(ctx, window, events)
		close(events)
	}()

	received := false
	for event := range events {
		received = true
		if err := session.Handle(ctx, event); err != nil {
			return &midStreamError{err: err}
		}
	}

	if err := <-result; err != nil {
		if received {
			return &midStreamError{err: err}
		}
		return err
	}
	return nil
}

// Conversation returns the stored conversation for the session.
func (o *Orchestrator) Conversation(sessionID string) (conversation.Conversation, error) {
	conv, ok := o.manager.GetConversation(sessionID)
	if !ok {
		return conversation.Conversation{}, notFoundError(sessionID)
	}
	return conv, nil
}

// ClearConversation removes the stored history and resets the
// session's rate window. Clearing an unknown session is a no-op.
func (o *Orchestrator) ClearConversation(sessionID string) {
	o.manager.ClearConversation(sessionID)
	o.limiter.Reset(sessionID)
	o.logger.Info("conversation cleared", zap.String("session_id", sessionID))
}

// Stats reports the counters surfaced by the health endpoint.
type Stats struct {
	Conversations int
	ActiveStreams int
	Provider      string
	Model         string
}

// Stats returns a snapshot of orchestrator state.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Conversations: o.manager.Size(),
		ActiveStreams: o.registry.ActiveCount(),
		Provider:      o.provider.Name(),
		Model:         o.provider.Model(),
	}
}

// midStreamError marks a failure that happened after upstream events
// were already delivered. It deliberately has no Unwrap so the retry
// classifier cannot reach a retryable cause inside it.
type midStreamError struct {
	err error
}

func (e *midStreamError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.err)
}
