package conversation

import "fmt"

// Manager owns the conversation lifecycle. It is the single mutation
// point for conversation history: no other component appends directly.
type Manager struct {
	store *Store
}

// NewManager creates a manager over the given store.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// CreateConversation returns the conversation for sessionID, creating it
// if absent. Idempotent.
func (m *Manager) CreateConversation(sessionID string) Conversation {
	return m.store.Create(sessionID)
}

// AddMessage appends a message with the current timestamp and returns it.
// Fails with ErrNotFound if no conversation exists for sessionID.
func (m *Manager) AddMessage(sessionID string, role Role, content string) (Message, error) {
	msg, err := NewMessage(role, content)
	if err != nil {
		return Message{}, fmt.Errorf("add message: %w", err)
	}

	if err := m.store.Append(sessionID, msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// GetConversation returns the stored conversation, or false if absent.
func (m *Manager) GetConversation(sessionID string) (Conversation, bool) {
	return m.store.Get(sessionID)
}

// GetMessages returns the message history for sessionID, empty if absent.
func (m *Manager) GetMessages(sessionID string) []Message {
	conv, ok := m.store.Get(sessionID)
	if !ok {
		return []Message{}
	}
	return conv.Messages
}

// ClearConversation deletes the conversation. Idempotent: clearing an
// absent session is not an error.
func (m *Manager) ClearConversation(sessionID string) {
	m.store.Delete(sessionID)
}

// Size returns the number of stored conversations.
func (m *Manager) Size() int {
	return m.store.Size()
}

// Compact applies the pruner to the stored history, persisting the
// result. This is the explicit prune-and-persist path; the send pipeline
// shapes its outbound context window without touching stored history.
func (m *Manager) Compact(sessionID string, pruner *Pruner) error {
	conv, ok := m.store.Get(sessionID)
	if !ok {
		return ErrNotFound
	}

	kept := pruner.Prune(conv.Messages)
	if len(kept) == len(conv.Messages) {
		return nil
	}
	return m.store.TrimPrefix(sessionID, len(kept))
}
