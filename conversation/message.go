// Package conversation provides the conversation domain model and its
// in-memory storage.
//
// Information Hiding:
// - Message invariants (valid role, non-blank content) enforced at creation
// - Storage structure and locking hidden behind the Store API
// - History mutation funneled through the Manager

package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser is a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the storable roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single conversation turn. Immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage creates a message, enforcing the role and content invariants.
func NewMessage(role Role, content string) (Message, error) {
	if !role.Valid() {
		return Message{}, fmt.Errorf("invalid message role: %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("message content cannot be empty")
	}

	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}, nil
}

// Conversation is the ordered message history for one session.
type Conversation struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
