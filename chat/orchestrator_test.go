package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/richinex/chatrelay/conversation"
	"github.com/richinex/chatrelay/llm"
	"github.com/richinex/chatrelay/ratelimit"
	"github.com/richinex/chatrelay/retry"
	"github.com/richinex/chatrelay/stream"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (linked transitively via the llm package's
	// Google SDK dependency) starts a worker goroutine in its init
	// that can never be stopped by the code under test.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeStreamer replays one scripted behavior per upstream attempt. The
// last script repeats when attempts outnumber scripts.
type fakeStreamer struct {
	mu      sync.Mutex
	calls   int
	scripts []func(ctx context.Context, events chan<- llm.StreamEvent) error
}

func (f *fakeStreamer) Name() string  { return "fake" }
func (f *fakeStreamer) Model() string { return "fake-model" }

func (f *fakeStreamer) StreamChat(ctx context.Context, messages []llm.ChatMessage, events chan<- llm.StreamEvent) error {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if call >= len(f.scripts) {
		call = len(f.scripts) - 1
	}
	return f.scripts[call](ctx, events)
}

func (f *fakeStreamer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func succeedWith(fragments ...string) func(ctx context.Context, events chan<- llm.StreamEvent) error {
	return func(ctx context.Context, events chan<- llm.StreamEvent) error {
		events <- llm.StreamEvent{Type: llm.StreamEventStart}
		for _, fragment := range fragments {
			events <- llm.StreamEvent{Type: llm.StreamEventText, Text: fragment}
		}
		events <- llm.StreamEvent{Type: llm.StreamEventStop}
		return nil
	}
}

func failBeforeEvents(err error) func(ctx context.Context, events chan<- llm.StreamEvent) error {
	return func(ctx context.Context, events chan<- llm.StreamEvent) error {
		return err
	}
}

func transientUpstream() *llm.UpstreamError {
	return &llm.UpstreamError{
		Kind:     llm.KindUnavailable,
		Provider: "fake",
		Status:   503,
		Err:      errors.New("service unavailable"),
	}
}

func newTestOrchestrator(t *testing.T, provider Streamer, limiter *ratelimit.Limiter) *Orchestrator {
	t.Helper()
	orch, err := New(Config{
		Provider: provider,
		Limiter:  limiter,
		Retry:    retry.New(3, time.Millisecond, 2*time.Millisecond, llm.IsRetryable, zap.NewNop()),
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return orch
}

// collect drains the downstream channel until the orchestrator closes
// it. Once the channel is closed the background goroutine has finished
// persisting and released the session.
func collect(t *testing.T, out <-chan stream.Event) []stream.Event {
	t.Helper()
	var events []stream.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-out:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func TestSendMessageStreamsAndPersists(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		succeedWith("Hel", "lo"),
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "  hi there  ")
	require.NoError(t, err)

	events := collect(t, out)
	require.Equal(t, []stream.Event{
		{Type: stream.EventStart},
		{Type: stream.EventText, Text: "Hel"},
		{Type: stream.EventText, Text: "lo"},
		{Type: stream.EventDone},
	}, events)

	conv, err := orch.Conversation("sess-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, conversation.RoleUser, conv.Messages[0].Role)
	require.Equal(t, "hi there", conv.Messages[0].Content)
	require.Equal(t, conversation.RoleAssistant, conv.Messages[1].Role)
	require.Equal(t, "Hello", conv.Messages[1].Content)

	require.Equal(t, 0, orch.Stats().ActiveStreams)
}

func TestSendMessageCollectsAllViolations(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		succeedWith("unused"),
	}}
	orch, err := New(Config{
		Provider:         provider,
		MaxContentLength: 10,
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)

	_, err = orch.SendMessage(context.Background(), "", strings.Repeat("\x00", 50))
	require.Error(t, err)

	chatErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeValidation, chatErr.Code)
	require.Len(t, chatErr.Details, 2)

	require.Equal(t, 0, provider.callCount())
	require.Equal(t, 0, orch.Stats().Conversations)
}

func TestSendMessageRateLimited(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		succeedWith("ok"),
	}}
	orch := newTestOrchestrator(t, provider, ratelimit.New(1, 0))

	out, err := orch.SendMessage(context.Background(), "sess-1", "first")
	require.NoError(t, err)
	collect(t, out)

	_, err = orch.SendMessage(context.Background(), "sess-1", "second")
	chatErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeRateLimited, chatErr.Code)
	require.Equal(t, []string{string(ratelimit.ReasonMinute)}, chatErr.Details)

	// The refused message never reached the conversation.
	conv, err := orch.Conversation("sess-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
}

func TestSendMessageRefusesConcurrentStream(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		func(ctx context.Context, events chan<- llm.StreamEvent) error {
			events <- llm.StreamEvent{Type: llm.StreamEventStart}
			<-release
			events <- llm.StreamEvent{Type: llm.StreamEventStop}
			return nil
		},
		succeedWith("unused"),
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "first")
	require.NoError(t, err)

	// Wait for the stream to be established before the second call.
	first := <-out
	require.Equal(t, stream.EventStart, first.Type)

	_, err = orch.SendMessage(context.Background(), "sess-1", "second")
	chatErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeStreamActive, chatErr.Code)

	// The refused call left the conversation untouched.
	require.Len(t, orch.mustMessages(t, "sess-1"), 1)

	close(release)
	collect(t, out)
	require.Len(t, orch.mustMessages(t, "sess-1"), 2)
}

// mustMessages is a test helper reading stored history directly.
func (o *Orchestrator) mustMessages(t *testing.T, sessionID string) []conversation.Message {
	t.Helper()
	conv, err := o.Conversation(sessionID)
	require.NoError(t, err)
	return conv.Messages
}

func TestSendMessageMidStreamFailureIsFatal(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		func(ctx context.Context, events chan<- llm.StreamEvent) error {
			events <- llm.StreamEvent{Type: llm.StreamEventStart}
			events <- llm.StreamEvent{Type: llm.StreamEventText, Text: "partial"}
			return transientUpstream()
		},
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "hello")
	require.NoError(t, err)

	events := collect(t, out)
	require.Equal(t, stream.EventError, events[len(events)-1].Type)

	// A transient failure after events arrived must not be retried.
	require.Equal(t, 1, provider.callCount())

	// Partial text is discarded, only the user message remains.
	require.Len(t, orch.mustMessages(t, "sess-1"), 1)
}

func TestSendMessageRetriesEstablishmentFailures(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		failBeforeEvents(transientUpstream()),
		failBeforeEvents(transientUpstream()),
		succeedWith("recovered"),
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "hello")
	require.NoError(t, err)

	events := collect(t, out)
	require.Equal(t, stream.EventDone, events[len(events)-1].Type)
	require.Equal(t, 3, provider.callCount())

	messages := orch.mustMessages(t, "sess-1")
	require.Len(t, messages, 2)
	require.Equal(t, "recovered", messages[1].Content)
}

func TestSendMessageFatalEstablishmentNotRetried(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		failBeforeEvents(&llm.UpstreamError{
			Kind:     llm.KindAuthentication,
			Provider: "fake",
			Status:   401,
			Err:      errors.New("invalid api key"),
		}),
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "hello")
	require.NoError(t, err)

	events := collect(t, out)
	require.Equal(t, stream.EventError, events[len(events)-1].Type)
	require.Equal(t, 1, provider.callCount())
}

func TestSendMessageRetryBudgetExhausted(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		failBeforeEvents(transientUpstream()),
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "hello")
	require.NoError(t, err)

	events := collect(t, out)
	require.Equal(t, stream.EventError, events[len(events)-1].Type)

	// maxRetries 3 means 4 attempts total.
	require.Equal(t, 4, provider.callCount())
	require.Len(t, orch.mustMessages(t, "sess-1"), 1)
}

func TestSendMessageEmptyCompletionNotPersisted(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		succeedWith(),
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "hello")
	require.NoError(t, err)

	events := collect(t, out)
	require.Equal(t, stream.EventDone, events[len(events)-1].Type)
	require.Len(t, orch.mustMessages(t, "sess-1"), 1)
}

func TestClearConversationResetsRateWindow(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		succeedWith("ok"),
	}}
	orch := newTestOrchestrator(t, provider, ratelimit.New(1, 0))

	out, err := orch.SendMessage(context.Background(), "sess-1", "first")
	require.NoError(t, err)
	collect(t, out)

	_, err = orch.SendMessage(context.Background(), "sess-1", "second")
	require.Error(t, err)

	orch.ClearConversation("never-seen") // unknown session is a no-op
	orch.ClearConversation("sess-1")

	_, err = orch.Conversation("sess-1")
	chatErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, CodeNotFound, chatErr.Code)

	// Admission resumes after the clear.
	out, err = orch.SendMessage(context.Background(), "sess-1", "third")
	require.NoError(t, err)
	collect(t, out)
}

func TestStatsReportsCounters(t *testing.T) {
	provider := &fakeStreamer{scripts: []func(context.Context, chan<- llm.StreamEvent) error{
		succeedWith("ok"),
	}}
	orch := newTestOrchestrator(t, provider, nil)

	out, err := orch.SendMessage(context.Background(), "sess-1", "hello")
	require.NoError(t, err)
	collect(t, out)

	stats := orch.Stats()
	require.Equal(t, 1, stats.Conversations)
	require.Equal(t, 0, stats.ActiveStreams)
	require.Equal(t, "fake", stats.Provider)
	require.Equal(t, "fake-model", stats.Model)
}
