package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
)

type ConversationRepository interface {
	// GetOrCreate resolves the conversation keyed by
	// (platform_account_id, platform_conversation_id), creating it if absent.
	// Concurrent duplicate webhook deliveries race here; the unique constraint
	// plus re-read resolves the race without application locks.
	GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error)
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Conversation, error)
	// RegisterMessage advances last_message_at and, when the message is
	// incoming and unread, increments unread_count by exactly one.
	RegisterMessage(ctx context.Context, id int64, lastMessageAt time.Time, incrementUnread bool) error
	DecrementUnread(ctx context.Context, id int64) error
	ResetUnread(ctx context.Context, id int64) error
	SetArchived(ctx context.Context, id int64, archived bool) error
}

type conversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

const conversationColumns = `id, platform_account_id, platform_conversation_id,
	participant_id, participant_name, participant_avatar,
	last_message_at, unread_count, is_archived, metadata, created_at, updated_at`

func scanConversation(row interface{ Scan(...interface{}) error }) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.PlatformAccountID, &c.PlatformConversationID,
		&c.ParticipantID, &c.ParticipantName, &c.ParticipantAvatar,
		&c.LastMessageAt, &c.UnreadCount, &c.IsArchived, &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepository) GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	insertQuery := `
		INSERT INTO conversations(
			platform_account_id, platform_conversation_id,
			participant_id, participant_name, participant_avatar, last_message_at, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (platform_account_id, platform_conversation_id) DO NOTHING
		RETURNING ` + conversationColumns

	created, err := scanConversation(r.db.QueryRowContext(ctx, insertQuery,
		conv.PlatformAccountID, conv.PlatformConversationID,
		conv.ParticipantID, conv.ParticipantName, conv.ParticipantAvatar,
		conv.LastMessageAt, conv.Metadata))
	if err == nil {
		return created, true, nil
	}
	if err != sql.ErrNoRows {
		slog.Info(err.Error())
		return nil, false, err
	}

	// Conflict: another delivery won the insert race. Re-read and proceed
	// with the existing row.
	selectQuery := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE platform_account_id = $1 AND platform_conversation_id = $2`

	existing, err := scanConversation(r.db.QueryRowContext(ctx, selectQuery,
		conv.PlatformAccountID, conv.PlatformConversationID))
	if err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}
	return existing, false, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	c, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return c, nil
}

func (r *conversationRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	query := `SELECT c.id, c.platform_account_id, c.platform_conversation_id,
			c.participant_id, c.participant_name, c.participant_avatar,
			c.last_message_at, c.unread_count, c.is_archived, c.metadata, c.created_at, c.updated_at
		FROM conversations c
		JOIN platform_accounts pa ON pa.id = c.platform_account_id
		WHERE pa.user_id = $1
		ORDER BY c.last_message_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return conversations, nil
}

func (r *conversationRepository) RegisterMessage(ctx context.Context, id int64, lastMessageAt time.Time, incrementUnread bool) error {
	increment := 0
	if incrementUnread {
		increment = 1
	}

	query := `
		UPDATE conversations
		SET last_message_at = GREATEST(last_message_at, $2),
			unread_count = unread_count + $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, lastMessageAt, increment)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *conversationRepository) DecrementUnread(ctx context.Context, id int64) error {
	query := `
		UPDATE conversations
		SET unread_count = GREATEST(unread_count - 1, 0), updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *conversationRepository) ResetUnread(ctx context.Context, id int64) error {
	query := `UPDATE conversations SET unread_count = 0, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *conversationRepository) SetArchived(ctx context.Context, id int64, archived bool) error {
	query := `UPDATE conversations SET is_archived = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, archived)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
