// Package store is the persistence adapter for conversations and messages.
// It owns no business logic: every read and write is scoped to the verified
// caller identity, and ownership mismatches surface as ErrUnauthorized, never
// as a generic not-found.
package store

import (
	"context"

	"github.com/taskpilot/pkg/models"
)

// ConversationStore is the typed access contract for conversation state.
type ConversationStore interface {
	// CreateConversation creates a new conversation owned by callerUserID.
	CreateConversation(ctx context.Context, callerUserID string) (*models.Conversation, error)

	// LoadConversation returns the conversation with the given id.
	// Returns models.ErrNotFound when absent and models.ErrUnauthorized when
	// the conversation exists but is owned by a different user.
	LoadConversation(ctx context.Context, id, callerUserID string) (*models.Conversation, error)

	// LoadMessages returns all messages of a conversation ordered by seq.
	LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	// AppendMessage appends a message to a conversation and returns it with
	// its assigned seq.
	AppendMessage(ctx context.Context, conversationID string, role models.MessageRole, content string) (*models.Message, error)

	// Ping verifies the backing store is reachable. Used by readiness checks.
	Ping(ctx context.Context) error
}
