package models

import (
	"database/sql"
	"time"
)

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeVideo    = "video"
	MessageTypeAudio    = "audio"
	MessageTypeFile     = "file"
	MessageTypeSticker  = "sticker"
	MessageTypeLocation = "location"
)

// Message is one unit of conversation content. platform_message_id is
// globally unique and serves as the ingestion idempotency key.
type Message struct {
	ID                int64        `db:"id" json:"id"`
	ConversationID    int64        `db:"conversation_id" json:"conversation_id"`
	PlatformAccountID int64        `db:"platform_account_id" json:"platform_account_id"`
	PlatformMessageID string       `db:"platform_message_id" json:"platform_message_id"`
	MessageType       string       `db:"message_type" json:"message_type"`
	Content           string       `db:"content" json:"content"`
	MediaURL          string       `db:"media_url" json:"media_url"`
	SenderID          string       `db:"sender_id" json:"sender_id"`
	SenderName        string       `db:"sender_name" json:"sender_name"`
	IsIncoming        bool         `db:"is_incoming" json:"is_incoming"`
	IsRead            bool         `db:"is_read" json:"is_read"`
	ReadAt            sql.NullTime `db:"read_at" json:"read_at"`
	DeliveredAt       sql.NullTime `db:"delivered_at" json:"delivered_at"`
	SentAt            time.Time    `db:"sent_at" json:"sent_at"`
	ReceivedAt        time.Time    `db:"received_at" json:"received_at"`
	Metadata          Metadata     `db:"metadata" json:"metadata"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

// NormalizeMessageType maps provider attachment/message type strings onto the
// fixed enum, defaulting to text.
func NormalizeMessageType(t string) string {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio,
		MessageTypeFile, MessageTypeSticker, MessageTypeLocation:
		return t
	case "document":
		return MessageTypeFile
	default:
		return MessageTypeText
	}
}
