package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/richinex/chatrelay/llm"
)

// State is the lifecycle phase of a streamed response.
type State int

const (
	// StateIdle means the session is reserved but no upstream event
	// has arrived yet.
	StateIdle State = iota
	// StateStreaming means the upstream stream is established and
	// fragments may be arriving.
	StateStreaming
	// StateCompleted means the upstream stream finished normally and
	// the buffer holds the full response.
	StateCompleted
	// StateFailed means the stream ended in an error. The buffer
	// contents must be discarded.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Session accumulates one streamed model response for a session and
// forwards each upstream event downstream as it arrives. All methods
// are safe for concurrent use, though in practice a single goroutine
// drives Handle. Once the session reaches a terminal state every
// further call is a no-op.
type Session struct {
	sessionID string
	out       chan<- Event
	startedAt time.Time

	mu    sync.Mutex
	state State
	buf   strings.Builder
}

// NewSession returns an idle session that pushes downstream events to
// out. The caller owns out; the session never closes it.
func NewSession(sessionID string, out chan<- Event) *Session {
	return &Session{
		sessionID: sessionID,
		out:       out,
		startedAt: time.Now(),
	}
}

// SessionID returns the owning session identifier.
func (s *Session) SessionID() string {
	return s.sessionID
}

// StartedAt returns when the session was reserved.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffer returns a snapshot of the text accumulated so far.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Handle applies one upstream event: start forwards a start
// notification, a text fragment is appended to the buffer and
// forwarded in arrival order, and stop transitions to Completed and
// pushes the done sentinel. Events arriving after a terminal state are
// dropped. The returned error is non-nil only when ctx ended before
// the downstream push could complete.
func (s *Session) Handle(ctx context.Context, event llm.StreamEvent) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}

	var downstream Event
	switch event.Type {
	case llm.StreamEventStart:
		s.state = StateStreaming
		downstream = Event{Type: EventStart}
	case llm.StreamEventText:
		s.state = StateStreaming
		s.buf.WriteString(event.Text)
		downstream = Event{Type: EventText, Text: event.Text}
	case llm.StreamEventStop:
		s.state = StateCompleted
		downstream = Event{Type: EventDone}
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown upstream event type %q", event.Type)
	}
	s.mu.Unlock()

	return s.push(ctx, downstream)
}

// Fail transitions to Failed and pushes an error event carrying the
// failure message. Calling Fail on a terminal session is a no-op, so
// it is safe on every exit path.
func (s *Session) Fail(ctx context.Context, err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()

	// Best effort: the client may already be gone.
	_ = s.push(ctx, Event{Type: EventError, Message: err.Error()})
}

func (s *Session) push(ctx context.Context, event Event) error {
	select {
	case s.out <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
