package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot/pkg/models"
)

// MemoryStore is an in-memory ConversationStore used by unit tests.
// It honors the same ownership and ordering contract as PostgresStore.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	nextSeq       int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (s *MemoryStore) CreateConversation(ctx context.Context, callerUserID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    callerUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv

	copied := *conv
	return &copied, nil
}

func (s *MemoryStore) LoadConversation(ctx context.Context, id, callerUserID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if conv.UserID != callerUserID {
		return nil, models.ErrUnauthorized
	}

	copied := *conv
	return &copied, nil
}

func (s *MemoryStore) LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, conversationID string, role models.MessageRole, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, models.ErrNotFound
	}

	s.nextSeq++
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Seq:            s.nextSeq,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.conversations[conversationID].UpdatedAt = msg.CreatedAt

	copied := msg
	return &copied, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
