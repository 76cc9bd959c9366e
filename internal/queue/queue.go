package queue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"
)

func EnqueueSync(asynqClient *asynq.Client, payload SyncAccountPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSyncAccount, taskPayload)

	// One outstanding sync per account; a task already queued for this
	// account absorbs the new enqueue.
	taskID := "sync:account:" + strconv.FormatInt(payload.AccountID, 10)
	_, err = asynqClient.Enqueue(task, asynq.TaskID(taskID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}

	slog.Debug("sync task enqueued", "account_id", payload.AccountID)
	return nil
}
