package models

import "time"

// Conversation groups messages with one external participant under one
// platform account. Unique per (platform_account_id, platform_conversation_id).
type Conversation struct {
	ID                     int64     `db:"id" json:"id"`
	PlatformAccountID      int64     `db:"platform_account_id" json:"platform_account_id"`
	PlatformConversationID string    `db:"platform_conversation_id" json:"platform_conversation_id"`
	ParticipantID          string    `db:"participant_id" json:"participant_id"`
	ParticipantName        string    `db:"participant_name" json:"participant_name"`
	ParticipantAvatar      string    `db:"participant_avatar" json:"participant_avatar"`
	LastMessageAt          time.Time `db:"last_message_at" json:"last_message_at"`
	UnreadCount            int       `db:"unread_count" json:"unread_count"`
	IsArchived             bool      `db:"is_archived" json:"is_archived"`
	Metadata               Metadata  `db:"metadata" json:"metadata"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}
