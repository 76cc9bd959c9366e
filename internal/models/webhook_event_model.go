package models

import (
	"database/sql"
	"time"
)

const (
	WebhookStatusPending    = "pending"
	WebhookStatusProcessing = "processing"
	WebhookStatusProcessed  = "processed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent is the append-only audit record for inbound webhook deliveries.
// The row is written before processing starts so a verified event survives a
// crash mid-pipeline.
type WebhookEvent struct {
	ID           int64        `db:"id" json:"id"`
	Platform     string       `db:"platform" json:"platform"`
	EventType    string       `db:"event_type" json:"event_type"`
	Payload      []byte       `db:"payload" json:"payload"`
	Headers      Metadata     `db:"headers" json:"headers"`
	Status       string       `db:"status" json:"status"`
	ErrorMessage string       `db:"error_message" json:"error_message"`
	ProcessedAt  sql.NullTime `db:"processed_at" json:"processed_at"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
