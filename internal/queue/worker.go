package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleSyncAccountTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncAccountPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return j.SyncAccount(ctx, payload.AccountID)
}

func (j *Queue) SyncAccount(ctx context.Context, accountID int64) error {
	account, err := j.pa.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		slog.Warn("sync task for unknown account", "account_id", accountID)
		return nil
	}
	if !account.IsActive {
		slog.Debug("sync task skipped, account inactive", "account_id", accountID)
		return nil
	}

	stats, err := j.ss.SyncAccount(ctx, account)
	if err != nil {
		slog.Error("account sync failed", "account_id", accountID,
			"platform", account.Platform, "error", err.Error())
		return err
	}

	slog.Info("account sync completed", "account_id", accountID,
		"platform", account.Platform,
		"conversations", stats.ConversationsSeen,
		"messages", stats.MessagesSeen,
		"new_messages", stats.NewMessages,
		"errors", stats.Errors)
	return nil
}
