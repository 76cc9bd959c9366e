package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/unibox/internal/models"
)

type PlatformAccountRepository interface {
	Create(ctx context.Context, pa *models.PlatformAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error)
	// FindByPlatformUserID resolves the account whose platform-native id
	// matches any of the given candidates (sender or recipient of an event).
	FindByPlatformUserID(ctx context.Context, platform string, candidates []string) (*models.PlatformAccount, error)
	// FindActiveByPlatform returns the single active account for a platform
	// (WhatsApp single-tenant resolution).
	FindActiveByPlatform(ctx context.Context, platform string) (*models.PlatformAccount, error)
	ListActive(ctx context.Context) ([]*models.PlatformAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error)
	// ListExpiringBetween returns active accounts whose token expiry falls in
	// [from, to), the refresh sweep window.
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.PlatformAccount, error)
	RotateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	Deactivate(ctx context.Context, id int64) error
	SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error
}

type platformAccountRepository struct {
	db *sql.DB
}

func NewPlatformAccountRepository(db *sql.DB) PlatformAccountRepository {
	return &platformAccountRepository{db: db}
}

const platformAccountColumns = `id, user_id, platform, platform_user_id, platform_username,
	access_token, refresh_token, token_expires_at, is_active, last_sync_at, metadata, created_at, updated_at`

func scanPlatformAccount(row interface{ Scan(...interface{}) error }) (*models.PlatformAccount, error) {
	var pa models.PlatformAccount
	err := row.Scan(&pa.ID, &pa.UserID, &pa.Platform, &pa.PlatformUserID, &pa.PlatformUsername,
		&pa.AccessToken, &pa.RefreshToken, &pa.TokenExpiresAt, &pa.IsActive, &pa.LastSyncAt,
		&pa.Metadata, &pa.CreatedAt, &pa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *platformAccountRepository) Create(ctx context.Context, pa *models.PlatformAccount) (int64, error) {
	query := `
		INSERT INTO platform_accounts(
			user_id, platform, platform_user_id, platform_username,
			access_token, refresh_token, token_expires_at, is_active, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		pa.UserID, pa.Platform, pa.PlatformUserID, pa.PlatformUsername,
		pa.AccessToken, pa.RefreshToken, pa.TokenExpiresAt, pa.IsActive, pa.Metadata,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *platformAccountRepository) GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + ` FROM platform_accounts WHERE id = $1`
	pa, err := scanPlatformAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return pa, nil
}

func (r *platformAccountRepository) FindByPlatformUserID(ctx context.Context, platform string, candidates []string) (*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + `
		FROM platform_accounts
		WHERE platform = $1 AND platform_user_id = ANY($2)
		ORDER BY created_at
		LIMIT 1`

	pa, err := scanPlatformAccount(r.db.QueryRowContext(ctx, query, platform, pq.Array(candidates)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return pa, nil
}

func (r *platformAccountRepository) FindActiveByPlatform(ctx context.Context, platform string) (*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + `
		FROM platform_accounts
		WHERE platform = $1 AND is_active = true
		ORDER BY created_at
		LIMIT 1`

	pa, err := scanPlatformAccount(r.db.QueryRowContext(ctx, query, platform))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return pa, nil
}

func (r *platformAccountRepository) ListActive(ctx context.Context) ([]*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + ` FROM platform_accounts WHERE is_active = true ORDER BY id`
	return r.list(ctx, query)
}

func (r *platformAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + ` FROM platform_accounts WHERE user_id = $1 ORDER BY id`
	return r.list(ctx, query, userID)
}

func (r *platformAccountRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + `
		FROM platform_accounts
		WHERE is_active = true
		  AND token_expires_at IS NOT NULL
		  AND token_expires_at >= $1
		  AND token_expires_at < $2
		ORDER BY token_expires_at`
	return r.list(ctx, query, from, to)
}

func (r *platformAccountRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.PlatformAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.PlatformAccount
	for rows.Next() {
		pa, err := scanPlatformAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, pa)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *platformAccountRepository) RotateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE platform_accounts
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformAccountRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE platform_accounts
		SET is_active = false, updated_at = CURRENT_TIMESTAMP
		WHERE is_active = true AND token_expires_at IS NOT NULL AND token_expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *platformAccountRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE platform_accounts SET is_active = false, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformAccountRepository) SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error {
	query := `UPDATE platform_accounts SET last_sync_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, syncedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
