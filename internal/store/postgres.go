package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot/pkg/models"
)

// PostgresStore implements ConversationStore on a relational database.
// Message ordering relies on the messages.seq BIGSERIAL column, which is
// monotonic per insert and is the sole ordering key for reads.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new conversation store over db
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateConversation creates a new conversation owned by callerUserID
func (s *PostgresStore) CreateConversation(ctx context.Context, callerUserID string) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:     uuid.NewString(),
		UserID: callerUserID,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO conversations (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING created_at, updated_at
	`, conv.ID, conv.UserID).Scan(&conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// LoadConversation loads a conversation and enforces caller ownership
func (s *PostgresStore) LoadConversation(ctx context.Context, id, callerUserID string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	if conv.UserID != callerUserID {
		return nil, models.ErrUnauthorized
	}

	return conv, nil
}

// LoadMessages returns all messages of a conversation ordered by seq
func (s *PostgresStore) LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, seq, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// AppendMessage appends a message and bumps the conversation's updated_at
func (s *PostgresStore) AppendMessage(ctx context.Context, conversationID string, role models.MessageRole, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING seq, created_at
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content).Scan(&msg.Seq, &msg.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = $1 WHERE id = $2
	`, time.Now(), conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	return msg, nil
}

// Ping verifies the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}
