package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/unibox/internal/models"
)

// ErrDuplicateMessage reports an insert with an already-stored platform
// message id. The platform-native message id is the idempotency key; a
// duplicate is a skip, not a failure.
var ErrDuplicateMessage = errors.New("repository: message already exists")

const pqUniqueViolation = "23505"

type MessageRepository interface {
	// Create inserts the message and returns ErrDuplicateMessage when a row
	// with the same platform_message_id already exists. Duplicate detection
	// happens at the unique constraint so concurrent in-flight inserts
	// resolve to exactly one row.
	Create(ctx context.Context, m *models.Message) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	ExistsByPlatformMessageID(ctx context.Context, platformMessageID string) (bool, error)
	ListByConversationID(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error)
	// MarkRead flips is_read once; returns false when the message was
	// already read (or outgoing rows the caller chose not to guard).
	MarkRead(ctx context.Context, id int64, readAt time.Time) (bool, error)
	// MarkConversationRead marks every unread incoming message of the
	// conversation and returns how many rows changed.
	MarkConversationRead(ctx context.Context, conversationID int64, readAt time.Time) (int64, error)
}

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, conversation_id, platform_account_id, platform_message_id,
	message_type, content, media_url, sender_id, sender_name, is_incoming,
	is_read, read_at, delivered_at, sent_at, received_at, metadata, created_at, updated_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.PlatformAccountID, &m.PlatformMessageID,
		&m.MessageType, &m.Content, &m.MediaURL, &m.SenderID, &m.SenderName, &m.IsIncoming,
		&m.IsRead, &m.ReadAt, &m.DeliveredAt, &m.SentAt, &m.ReceivedAt, &m.Metadata,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepository) Create(ctx context.Context, m *models.Message) (int64, error) {
	query := `
		INSERT INTO messages(
			conversation_id, platform_account_id, platform_message_id,
			message_type, content, media_url, sender_id, sender_name,
			is_incoming, is_read, read_at, sent_at, received_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		m.ConversationID, m.PlatformAccountID, m.PlatformMessageID,
		m.MessageType, m.Content, m.MediaURL, m.SenderID, m.SenderName,
		m.IsIncoming, m.IsRead, m.ReadAt, m.SentAt, m.ReceivedAt, m.Metadata,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return 0, ErrDuplicateMessage
		}
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) ExistsByPlatformMessageID(ctx context.Context, platformMessageID string) (bool, error) {
	query := `SELECT 1 FROM messages WHERE platform_message_id = $1`

	var one int
	err := r.db.QueryRowContext(ctx, query, platformMessageID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return true, nil
}

func (r *messageRepository) ListByConversationID(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id int64, readAt time.Time) (bool, error) {
	query := `
		UPDATE messages
		SET is_read = true, read_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_read = false`

	result, err := r.db.ExecContext(ctx, query, id, readAt)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *messageRepository) MarkConversationRead(ctx context.Context, conversationID int64, readAt time.Time) (int64, error) {
	query := `
		UPDATE messages
		SET is_read = true, read_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE conversation_id = $1 AND is_incoming = true AND is_read = false`

	result, err := r.db.ExecContext(ctx, query, conversationID, readAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}
