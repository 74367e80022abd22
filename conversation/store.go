// In-memory conversation store.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind the API
// - Accessors return copies to prevent external mutation
//
// The mutation surface is deliberately narrow: Append adds one message,
// TrimPrefix removes an oldest-first prefix. History can never be
// reordered or edited in place through this API.

package conversation

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no conversation exists for a session.
var ErrNotFound = errors.New("conversation not found")

// Store is an in-memory map of conversations keyed by session ID.
// Data is lost when the process terminates.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*Conversation),
	}
}

// Create returns the conversation for sessionID, creating an empty one if
// absent. Creation is idempotent: an existing conversation is returned
// unchanged, never reset.
func (s *Store) Create(sessionID string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.conversations[sessionID]; ok {
		return copyConversation(existing)
	}

	now := time.Now()
	conv := &Conversation{
		SessionID: sessionID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[sessionID] = conv
	return copyConversation(conv)
}

// Get returns a copy of the conversation for sessionID.
func (s *Store) Get(sessionID string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		return Conversation{}, false
	}
	return copyConversation(conv), true
}

// Exists checks if a conversation exists for sessionID.
func (s *Store) Exists(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.conversations[sessionID]
	return ok
}

// Append adds a message to the conversation and bumps UpdatedAt.
// Returns ErrNotFound if no conversation exists for sessionID.
func (s *Store) Append(sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		return ErrNotFound
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()
	return nil
}

// TrimPrefix removes the oldest messages so that at most keep remain.
// Only a contiguous prefix is ever dropped; the kept suffix preserves
// order. Returns ErrNotFound if no conversation exists for sessionID.
func (s *Store) TrimPrefix(sessionID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		return ErrNotFound
	}

	if keep < 0 {
		keep = 0
	}
	if keep >= len(conv.Messages) {
		return nil
	}

	kept := make([]Message, keep)
	copy(kept, conv.Messages[len(conv.Messages)-keep:])
	conv.Messages = kept
	conv.UpdatedAt = time.Now()
	return nil
}

// Delete removes the conversation for sessionID, reporting whether one
// existed.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.conversations[sessionID]
	delete(s.conversations, sessionID)
	return ok
}

// All returns copies of every stored conversation.
func (s *Store) All() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		all = append(all, copyConversation(conv))
	}
	return all
}

// Size returns the number of stored conversations.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conversations)
}

// copyConversation makes a defensive copy, cloning the message slice.
func copyConversation(conv *Conversation) Conversation {
	copied := *conv
	copied.Messages = make([]Message, len(conv.Messages))
	copy(copied.Messages, conv.Messages)
	return copied
}
