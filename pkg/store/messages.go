package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xhad/tuber/internal/models"
)

type MessageStoreConfig struct {
	TableName string
}

// MessageStore is the append-only conversation history table.
type MessageStore struct {
	config MessageStoreConfig
	pool   *pgxpool.Pool
}

// NewMessageStore initializes the schema on the shared pool.
func NewMessageStore(pool *pgxpool.Pool, config MessageStoreConfig) (*MessageStore, error) {
	if config.TableName == "" {
		config.TableName = "conversation_messages"
	}

	ms := &MessageStore{
		config: config,
		pool:   pool,
	}

	if err := ms.initialize(); err != nil {
		return nil, err
	}

	return ms, nil
}

func (ms *MessageStore) initialize() error {
	ctx := context.Background()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, ms.config.TableName)

	_, err := ms.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_conversation_idx
		ON %s (conversation_id, created_at DESC)`,
		ms.config.TableName, ms.config.TableName)

	_, err = ms.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create messages index: %v", err)
	}

	return nil
}

// Append writes one message to the conversation. Messages are never
// updated or deleted.
func (ms *MessageStore) Append(ctx context.Context, conversationID, role, content string) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, role, content)
		VALUES ($1, $2, $3, $4)`,
		ms.config.TableName)

	_, err := ms.pool.Exec(ctx, stmt, uuid.NewString(), conversationID, role, sanitizeUTF8(content))
	if err != nil {
		return fmt.Errorf("failed to insert message: %v", err)
	}

	return nil
}

// Recent returns up to limit messages for the conversation, newest first.
// Callers that replay history must reverse the order themselves.
func (ms *MessageStore) Recent(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, role, content, created_at
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		ms.config.TableName)

	rows, err := ms.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %v", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %v", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
