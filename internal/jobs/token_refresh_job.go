package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/unibox/internal/models"
	"github.com/maheshrc27/unibox/internal/platform"
	"github.com/maheshrc27/unibox/internal/repository"
	"github.com/maheshrc27/unibox/internal/vault"
)

const refreshHorizon = 7 * 24 * time.Hour

// TokenRefreshJob rotates Meta access tokens before they expire. An account
// whose refresh fails stays active and is retried on the next sweep; only
// actual expiry deactivates it (see DeactivationJob).
type TokenRefreshJob struct {
	accounts repository.PlatformAccountRepository
	graph    *platform.GraphClient
	vault    *vault.Vault
	appID    string
}

func NewTokenRefreshJob(accounts repository.PlatformAccountRepository, graph *platform.GraphClient, v *vault.Vault, appID string) *TokenRefreshJob {
	return &TokenRefreshJob{
		accounts: accounts,
		graph:    graph,
		vault:    v,
		appID:    appID,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	now := time.Now()
	accounts, err := j.accounts.ListExpiringBetween(ctx, now, now.Add(refreshHorizon))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	refreshed := 0
	failed := 0
	var mu sync.Mutex

	for _, acc := range accounts {
		// Only Meta long-lived tokens support exchange; WhatsApp system
		// user tokens have no refresh flow.
		if acc.Platform != models.PlatformInstagram && acc.Platform != models.PlatformMessenger {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.PlatformAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := j.refreshAccount(ctx, acc)
			mu.Lock()
			if err != nil {
				slog.Error("token refresh failed", "account_id", acc.ID,
					"platform", acc.Platform, "error", err.Error())
				failed++
			} else {
				refreshed++
			}
			mu.Unlock()
		}(acc)
	}

	wg.Wait()
	slog.Info("token refresh sweep completed",
		"expiring", len(accounts), "refreshed", refreshed, "failed", failed)
}

func (j *TokenRefreshJob) refreshAccount(ctx context.Context, acc *models.PlatformAccount) error {
	token, err := j.vault.Decrypt(acc.AccessToken)
	if err != nil {
		return err
	}

	newToken, expiresAt, err := j.graph.ExchangeLongLivedToken(ctx, j.appID, token)
	if err != nil {
		return err
	}

	encrypted, err := j.vault.EncryptIfNeeded(newToken)
	if err != nil {
		return err
	}

	if err := j.accounts.RotateToken(ctx, acc.ID, encrypted, "", expiresAt); err != nil {
		return err
	}

	slog.Info("token refreshed", "account_id", acc.ID, "platform", acc.Platform,
		"expires_at", expiresAt.Format(time.RFC3339))
	return nil
}
