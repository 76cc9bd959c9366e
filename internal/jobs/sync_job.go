package job

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/unibox/internal/queue"
	"github.com/maheshrc27/unibox/internal/repository"
)

// SyncEnqueueJob fans active accounts out onto the task queue. The queue
// worker runs the reconciler itself so a slow platform API never stalls the
// cron tick.
type SyncEnqueueJob struct {
	accounts    repository.PlatformAccountRepository
	asynqClient *asynq.Client
}

func NewSyncEnqueueJob(accounts repository.PlatformAccountRepository, asynqClient *asynq.Client) *SyncEnqueueJob {
	return &SyncEnqueueJob{accounts: accounts, asynqClient: asynqClient}
}

func (j *SyncEnqueueJob) EnqueueSyncTasks() {
	ctx := context.Background()

	accounts, err := j.accounts.ListActive(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	enqueued := 0
	for _, acc := range accounts {
		if err := queue.EnqueueSync(j.asynqClient, queue.SyncAccountPayload{AccountID: acc.ID}); err != nil {
			slog.Error("failed to enqueue sync task", "account_id", acc.ID, "error", err.Error())
			continue
		}
		enqueued++
	}

	slog.Debug("sync sweep enqueued", "active", len(accounts), "enqueued", enqueued)
}
