package conversation

import (
	"testing"
)

func mustMessage(t *testing.T, role Role, content string) Message {
	t.Helper()
	msg, err := NewMessage(role, content)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	return msg
}

func TestStoreCreateIdempotent(t *testing.T) {
	store := NewStore()

	first := store.Create("test-session")
	if err := store.Append("test-session", mustMessage(t, RoleUser, "Hello")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	second := store.Create("test-session")
	if len(second.Messages) != 1 {
		t.Errorf("expected create on existing session to preserve messages, got %d", len(second.Messages))
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("expected create on existing session to keep CreatedAt")
	}
	if store.Size() != 1 {
		t.Errorf("expected 1 conversation, got %d", store.Size())
	}
}

func TestStoreAppendMissingSession(t *testing.T) {
	store := NewStore()

	err := store.Append("nonexistent", mustMessage(t, RoleUser, "Hello"))
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreAppendOrder(t *testing.T) {
	store := NewStore()
	store.Create("test-session")

	contents := []string{"one", "two", "three"}
	for _, c := range contents {
		if err := store.Append("test-session", mustMessage(t, RoleUser, c)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	conv, ok := store.Get("test-session")
	if !ok {
		t.Fatal("expected conversation to exist")
	}
	for i, c := range contents {
		if conv.Messages[i].Content != c {
			t.Errorf("message %d: expected %q, got %q", i, c, conv.Messages[i].Content)
		}
	}
}

func TestStoreTrimPrefix(t *testing.T) {
	store := NewStore()
	store.Create("test-session")

	for _, c := range []string{"a", "b", "c", "d", "e"} {
		if err := store.Append("test-session", mustMessage(t, RoleUser, c)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := store.TrimPrefix("test-session", 2); err != nil {
		t.Fatalf("TrimPrefix failed: %v", err)
	}

	conv, _ := store.Get("test-session")
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Content != "d" || conv.Messages[1].Content != "e" {
		t.Errorf("expected newest suffix [d e], got [%s %s]", conv.Messages[0].Content, conv.Messages[1].Content)
	}

	// Keeping more than present is a no-op.
	if err := store.TrimPrefix("test-session", 10); err != nil {
		t.Fatalf("TrimPrefix failed: %v", err)
	}
	conv, _ = store.Get("test-session")
	if len(conv.Messages) != 2 {
		t.Errorf("expected trim to be a no-op, got %d messages", len(conv.Messages))
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore()
	store.Create("test-session")

	if !store.Exists("test-session") {
		t.Error("expected session to exist")
	}
	if !store.Delete("test-session") {
		t.Error("expected Delete to report existing session")
	}
	if store.Exists("test-session") {
		t.Error("expected session to not exist after deletion")
	}
	if store.Delete("test-session") {
		t.Error("expected Delete on absent session to report false")
	}
}

func TestStoreAll(t *testing.T) {
	store := NewStore()
	store.Create("session-1")
	store.Create("session-2")

	all := store.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(all))
	}

	found1, found2 := false, false
	for _, conv := range all {
		if conv.SessionID == "session-1" {
			found1 = true
		}
		if conv.SessionID == "session-2" {
			found2 = true
		}
	}
	if !found1 || !found2 {
		t.Errorf("expected to find both sessions, found1=%v found2=%v", found1, found2)
	}
}

func TestStoreIsolation(t *testing.T) {
	store := NewStore()
	store.Create("test-session")
	if err := store.Append("test-session", mustMessage(t, RoleUser, "Original")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Mutate the returned copy
	conv, _ := store.Get("test-session")
	conv.Messages[0].Content = "Modified"

	reloaded, _ := store.Get("test-session")
	if reloaded.Messages[0].Content != "Original" {
		t.Errorf("expected 'Original', got '%s' - store should copy data", reloaded.Messages[0].Content)
	}
}
