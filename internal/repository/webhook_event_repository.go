package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/unibox/internal/models"
)

// WebhookEventRepository persists the append-only audit log of verified
// webhook deliveries. The pending row is written before any processing so a
// crash mid-pipeline never loses a verified event.
type WebhookEventRepository interface {
	Create(ctx context.Context, e *models.WebhookEvent) (int64, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	GetByID(ctx context.Context, id int64) (*models.WebhookEvent, error)
}

type webhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, e *models.WebhookEvent) (int64, error) {
	query := `
		INSERT INTO webhook_events(platform, event_type, payload, headers, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	status := e.Status
	if status == "" {
		status = models.WebhookStatusPending
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query, e.Platform, e.EventType, e.Payload, e.Headers, status).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id int64) error {
	query := `
		UPDATE webhook_events
		SET status = $2, processed_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, models.WebhookStatusProcessed)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *webhookEventRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE webhook_events
		SET status = $2, error_message = $3, processed_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, models.WebhookStatusFailed, errorMessage)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *webhookEventRepository) GetByID(ctx context.Context, id int64) (*models.WebhookEvent, error) {
	query := `SELECT id, platform, event_type, payload, headers, status, error_message, processed_at, created_at
		FROM webhook_events WHERE id = $1`

	var e models.WebhookEvent
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Platform, &e.EventType,
		&e.Payload, &e.Headers, &e.Status, &e.ErrorMessage, &e.ProcessedAt, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &e, nil
}
