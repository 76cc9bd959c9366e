package models

import (
	"database/sql"
	"time"
)

const (
	PlatformInstagram = "instagram"
	PlatformMessenger = "messenger"
	PlatformWhatsApp  = "whatsapp"
)

// PlatformAccount is one connected business identity on one platform.
// access_token and refresh_token are stored encrypted (see internal/vault).
type PlatformAccount struct {
	ID               int64        `db:"id" json:"id"`
	UserID           int64        `db:"user_id" json:"user_id"`
	Platform         string       `db:"platform" json:"platform"`
	PlatformUserID   string       `db:"platform_user_id" json:"platform_user_id"`
	PlatformUsername string       `db:"platform_username" json:"platform_username"`
	AccessToken      string       `db:"access_token" json:"-"`
	RefreshToken     string       `db:"refresh_token" json:"-"`
	TokenExpiresAt   sql.NullTime `db:"token_expires_at" json:"token_expires_at"`
	IsActive         bool         `db:"is_active" json:"is_active"`
	LastSyncAt       sql.NullTime `db:"last_sync_at" json:"last_sync_at"`
	Metadata         Metadata     `db:"metadata" json:"metadata"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}
